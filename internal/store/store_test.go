package store

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
)

func TestPoolConfigAppliesOptions(t *testing.T) {
	cfg, err := poolConfig("postgres://u:p@localhost:5432/db", Options{
		MaxConns:               8,
		MinConns:               12,
		MaxConnIdleTime:        time.Minute,
		MaxConnLifetime:        time.Hour,
		StatementCacheCapacity: 64,
	})
	if err != nil {
		t.Fatalf("poolConfig() unexpected error: %v", err)
	}
	if cfg.MaxConns != 8 {
		t.Fatalf("MaxConns = %d, want 8", cfg.MaxConns)
	}
	if cfg.MinConns != 8 {
		t.Fatalf("MinConns = %d, want capped at 8", cfg.MinConns)
	}
	if cfg.MaxConnIdleTime != time.Minute || cfg.MaxConnLifetime != time.Hour {
		t.Fatalf("lifetimes = %s/%s", cfg.MaxConnIdleTime, cfg.MaxConnLifetime)
	}
	if cfg.ConnConfig.DefaultQueryExecMode != pgx.QueryExecModeCacheStatement || cfg.ConnConfig.StatementCacheCapacity != 64 {
		t.Fatalf("statement cache not configured: %v/%d", cfg.ConnConfig.DefaultQueryExecMode, cfg.ConnConfig.StatementCacheCapacity)
	}
}

func TestPoolConfigInvalidURL(t *testing.T) {
	if _, err := poolConfig("postgres://%zz", Options{}); err == nil {
		t.Fatalf("expected parse error")
	}
}

func TestTxScopeBelongsToOwner(t *testing.T) {
	a, b := Wrap(nil, nil), Wrap(nil, nil)
	ctx := context.WithValue(context.Background(), txKey{}, txScope{owner: a})

	if _, ok := a.txFrom(ctx); !ok {
		t.Fatalf("owner should see its own transaction")
	}
	if _, ok := b.txFrom(ctx); ok {
		t.Fatalf("another store must not join a foreign transaction")
	}
}

func TestWithTimeout(t *testing.T) {
	ctx, cancel := withTimeout(context.Background(), 0)
	defer cancel()
	if _, ok := ctx.Deadline(); ok {
		t.Fatalf("zero timeout should not set a deadline")
	}

	ctx, cancel = withTimeout(context.Background(), time.Second)
	defer cancel()
	if _, ok := ctx.Deadline(); !ok {
		t.Fatalf("positive timeout should set a deadline")
	}
}

func TestHealthCheckUninitialized(t *testing.T) {
	var st *Store
	if err := st.HealthCheck(context.Background()); err == nil {
		t.Fatalf("expected error for nil store")
	}
}
