// Package memstore is an in-memory implementation of the repository surface,
// used by tests that do not need Postgres.
package memstore

import (
	"context"
	"maps"
	"sync"
	"time"
)

type txKey struct{}

type followKey struct {
	follower  string
	following string
}

type reviewRow struct {
	id        string
	userID    string
	movieID   string
	rating    float64
	content   string
	createdAt time.Time
	updatedAt time.Time
	seq       int64
}

type followRow struct {
	id        string
	createdAt time.Time
	seq       int64
}

type tables struct {
	movies     map[string]movieRow
	byExternal map[int64]string
	users      map[string]userRow
	byEmail    map[string]string
	reviews    map[string]reviewRow
	follows    map[followKey]followRow
	seq        int64
	lastTick   time.Time
}

func (t tables) clone() tables {
	return tables{
		movies:     maps.Clone(t.movies),
		byExternal: maps.Clone(t.byExternal),
		users:      maps.Clone(t.users),
		byEmail:    maps.Clone(t.byEmail),
		reviews:    maps.Clone(t.reviews),
		follows:    maps.Clone(t.follows),
		seq:        t.seq,
		lastTick:   t.lastTick,
	}
}

// Store holds every table behind one mutex. InTx holds that mutex for the
// whole callback and restores a snapshot when the callback fails.
type Store struct {
	mu  sync.Mutex
	t   tables
	now func() time.Time

	Movies  *Movies
	Reviews *Reviews
	Users   *Users
	Follows *Follows
}

// New returns an empty store.
func New() *Store {
	s := &Store{
		t: tables{
			movies:     make(map[string]movieRow),
			byExternal: make(map[int64]string),
			users:      make(map[string]userRow),
			byEmail:    make(map[string]string),
			reviews:    make(map[string]reviewRow),
			follows:    make(map[followKey]followRow),
		},
		now: time.Now,
	}
	s.Movies = &Movies{s: s}
	s.Reviews = &Reviews{s: s}
	s.Users = &Users{s: s}
	s.Follows = &Follows{s: s}
	return s
}

// InTx runs fn atomically with respect to every other store call.
func (s *Store) InTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if s.inTx(ctx) {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.t.clone()
	if err := fn(context.WithValue(ctx, txKey{}, s)); err != nil {
		s.t = snapshot
		return err
	}
	return nil
}

// inTx reports whether ctx already runs inside one of this store's transactions.
func (s *Store) inTx(ctx context.Context) bool {
	owner, ok := ctx.Value(txKey{}).(*Store)
	return ok && owner == s
}

// lock acquires the store mutex unless ctx already runs inside InTx.
func (s *Store) lock(ctx context.Context) func() {
	if s.inTx(ctx) {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// tick returns a strictly increasing timestamp so orderings are stable.
func (s *Store) tick() time.Time {
	now := s.now().UTC().Truncate(time.Microsecond)
	if !now.After(s.t.lastTick) {
		now = s.t.lastTick.Add(time.Microsecond)
	}
	s.t.lastTick = now
	return now
}

func (s *Store) nextSeq() int64 {
	s.t.seq++
	return s.t.seq
}
