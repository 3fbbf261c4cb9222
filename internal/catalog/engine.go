// Package catalog keeps the local movie catalog in step with the external
// metadata provider and matches the daily ranking feed against it.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/Clark-Hu/cinesocial/internal/boxoffice"
	"github.com/Clark-Hu/cinesocial/internal/domain"
	"github.com/Clark-Hu/cinesocial/internal/tmdb"
)

const tracerName = "github.com/Clark-Hu/cinesocial/internal/catalog"

// MovieStore is the slice of the catalog store the engine writes to.
type MovieStore interface {
	Upsert(ctx context.Context, movie domain.Movie) (domain.Movie, bool, error)
}

// Options tunes an Engine.
type Options struct {
	Language    string
	Region      string
	Concurrency int
	Metrics     *Metrics
	Logger      *log.Logger
}

// Engine runs listing syncs and ranking reconciliation.
type Engine struct {
	catalog     tmdb.Client
	ranking     boxoffice.Client
	movies      MovieStore
	language    string
	region      string
	concurrency int
	metrics     *Metrics
	tracer      trace.Tracer
	logger      *log.Logger
}

// SyncResult summarizes one listing page sync.
type SyncResult struct {
	Kind     tmdb.ListKind
	Page     int
	Fetched  int
	Inserted int
	Existing int
	Skipped  int
}

// RankedMatch pairs a ranking entry with the catalog entry it resolved to.
type RankedMatch struct {
	Entry domain.RankEntry
	Movie domain.MovieSummary
}

// NewEngine wires an Engine. ranking may be nil when only sync is needed.
func NewEngine(catalog tmdb.Client, ranking boxoffice.Client, movies MovieStore, opts Options) *Engine {
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Engine{
		catalog:     catalog,
		ranking:     ranking,
		movies:      movies,
		language:    opts.Language,
		region:      opts.Region,
		concurrency: concurrency,
		metrics:     opts.Metrics,
		tracer:      otel.Tracer(tracerName),
		logger:      logger,
	}
}

// SyncNowPlaying inserts one page of the now-playing listing.
func (e *Engine) SyncNowPlaying(ctx context.Context, page int) error {
	_, err := e.SyncList(ctx, tmdb.NowPlaying, page)
	return err
}

// SyncList fetches one listing page and inserts every movie not already in the
// catalog. Existing rows are never overwritten. Results that cannot be
// converted are skipped; a failed fetch skips the whole page.
func (e *Engine) SyncList(ctx context.Context, kind tmdb.ListKind, page int) (SyncResult, error) {
	ctx, span := e.tracer.Start(ctx, "catalog.SyncList", trace.WithAttributes(
		attribute.String("catalog.kind", string(kind)),
		attribute.Int("catalog.page", page),
	))
	defer span.End()

	result := SyncResult{Kind: kind, Page: page}
	listing, err := e.catalog.GetPage(ctx, kind, page, e.language, e.region)
	if err != nil {
		e.metrics.page(string(kind), "error")
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch page")
		return result, fmt.Errorf("sync %s page %d: %w: %w", kind, page, domain.ErrUpstream, err)
	}
	e.metrics.page(string(kind), "ok")
	result.Fetched = len(listing.Results)

	for _, item := range listing.Results {
		summary, err := item.Summary()
		if err != nil {
			e.logger.Printf("catalog: skipping %s result: %v", kind, err)
			e.metrics.movie(string(kind), "skipped")
			result.Skipped++
			continue
		}
		_, inserted, err := e.movies.Upsert(ctx, summary.ToMovie())
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "upsert movie")
			return result, fmt.Errorf("sync %s page %d: upsert %d: %w", kind, page, summary.ExternalID, err)
		}
		if inserted {
			e.metrics.movie(string(kind), "inserted")
			result.Inserted++
		} else {
			e.metrics.movie(string(kind), "existing")
			result.Existing++
		}
	}

	span.SetAttributes(
		attribute.Int("catalog.inserted", result.Inserted),
		attribute.Int("catalog.skipped", result.Skipped),
	)
	e.logger.Printf("catalog: synced %s page %d (fetched=%d inserted=%d existing=%d skipped=%d)",
		kind, page, result.Fetched, result.Inserted, result.Existing, result.Skipped)
	return result, nil
}

// SyncPages syncs pages first..last in order, stopping at the first failure.
func (e *Engine) SyncPages(ctx context.Context, kind tmdb.ListKind, first, last int) ([]SyncResult, error) {
	if first <= 0 || last < first {
		return nil, fmt.Errorf("%w: invalid page range %d..%d", domain.ErrValidation, first, last)
	}
	results := make([]SyncResult, 0, last-first+1)
	for page := first; page <= last; page++ {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		result, err := e.SyncList(ctx, kind, page)
		if err != nil {
			return results, err
		}
		results = append(results, result)
	}
	return results, nil
}

// ReconcileDailyRanking matches each ranked title for date against the
// provider's search, taking the first hit. Entries without a hit or whose
// search fails are dropped; the rest keep ranking order. A cancelled context
// yields the matches gathered so far alongside the context error.
func (e *Engine) ReconcileDailyRanking(ctx context.Context, date time.Time) ([]RankedMatch, error) {
	if e.ranking == nil {
		return nil, errors.New("catalog: no ranking client configured")
	}
	ctx, span := e.tracer.Start(ctx, "catalog.ReconcileDailyRanking", trace.WithAttributes(
		attribute.String("catalog.date", date.Format("2006-01-02")),
	))
	defer span.End()
	started := time.Now()
	defer func() { e.metrics.reconcileTook(time.Since(started)) }()

	entries, err := e.ranking.DailyRanking(ctx, date)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch ranking")
		return nil, fmt.Errorf("reconcile %s: %w: %w", date.Format("2006-01-02"), domain.ErrUpstream, err)
	}

	slots := make([]*RankedMatch, len(entries))
	var g errgroup.Group
	g.SetLimit(e.concurrency)
	for i, entry := range entries {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			slots[i] = e.match(ctx, entry)
			return nil
		})
	}
	_ = g.Wait()

	matches := make([]RankedMatch, 0, len(entries))
	for _, slot := range slots {
		if slot != nil {
			matches = append(matches, *slot)
		}
	}
	span.SetAttributes(
		attribute.Int("catalog.entries", len(entries)),
		attribute.Int("catalog.matched", len(matches)),
	)
	if err := ctx.Err(); err != nil {
		return matches, err
	}
	return matches, nil
}

func (e *Engine) match(ctx context.Context, entry domain.RankEntry) *RankedMatch {
	page, err := e.catalog.Search(ctx, entry.Title, 1, e.language)
	if err != nil {
		e.logger.Printf("catalog: search for %q failed: %v", entry.Title, err)
		e.metrics.entry("failed")
		return nil
	}
	if len(page.Results) == 0 {
		e.logger.Printf("catalog: no search result for %q", entry.Title)
		e.metrics.entry("unmatched")
		return nil
	}
	summary, err := page.Results[0].Summary()
	if err != nil {
		e.logger.Printf("catalog: first result for %q unusable: %v", entry.Title, err)
		e.metrics.entry("unmatched")
		return nil
	}
	e.metrics.entry("matched")
	return &RankedMatch{Entry: entry, Movie: summary}
}
