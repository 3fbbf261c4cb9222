package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/Clark-Hu/cinesocial/internal/boxoffice"
	"github.com/Clark-Hu/cinesocial/internal/catalog"
	"github.com/Clark-Hu/cinesocial/internal/config"
	"github.com/Clark-Hu/cinesocial/internal/repository"
	"github.com/Clark-Hu/cinesocial/internal/store"
	"github.com/Clark-Hu/cinesocial/internal/tmdb"
)

type commandContext struct {
	verbose *bool
}

// runtime is everything a subcommand may need, opened per invocation.
type runtime struct {
	cfg    config.Config
	store  *store.Store
	repo   *repository.Repository
	engine *catalog.Engine
}

func newCommandContext(verbose *bool) *commandContext {
	return &commandContext{verbose: verbose}
}

func (c *commandContext) logger() *log.Logger {
	if c.verbose != nil && *c.verbose {
		return log.New(os.Stderr, "[catalogctl] ", log.LstdFlags)
	}
	return log.New(io.Discard, "", 0)
}

// withRuntime loads configuration, connects to the database and builds the
// catalog engine before handing control to fn.
func (c *commandContext) withRuntime(ctx context.Context, fn func(rt *runtime) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := c.logger()

	dbCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.DBConnTimeoutSecs)*time.Second)
	defer cancel()
	st, err := store.New(dbCtx, cfg.DBURL, store.Options{
		MaxConns:               int32(min(cfg.DBMaxConns, cfg.ReconcileConcurrency+2)),
		ConnTimeout:            time.Duration(cfg.DBConnTimeoutSecs) * time.Second,
		StatementCacheCapacity: cfg.DBStatementCache,
		Logger:                 logger,
	})
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer st.Close()

	tmdbClient, err := tmdb.NewHTTPClient(cfg.TMDBURL, cfg.TMDBAPIKey, time.Duration(cfg.TMDBTimeoutSecs)*time.Second, logger)
	if err != nil {
		return fmt.Errorf("init tmdb client: %w", err)
	}
	boxClient, err := boxoffice.NewHTTPClient(cfg.BoxOfficeURL, cfg.BoxOfficeAPIKey, time.Duration(cfg.BoxOfficeTimeoutSecs)*time.Second, logger)
	if err != nil {
		return fmt.Errorf("init box office client: %w", err)
	}

	repo := repository.New(st)
	engine := catalog.NewEngine(tmdbClient, boxClient, repo.Movies, catalog.Options{
		Language:    cfg.TMDBLanguage,
		Region:      cfg.TMDBRegion,
		Concurrency: cfg.ReconcileConcurrency,
		Logger:      logger,
	})

	return fn(&runtime{cfg: cfg, store: st, repo: repo, engine: engine})
}
