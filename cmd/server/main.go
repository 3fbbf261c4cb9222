package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Clark-Hu/cinesocial/db"
	"github.com/Clark-Hu/cinesocial/internal/boxoffice"
	"github.com/Clark-Hu/cinesocial/internal/catalog"
	"github.com/Clark-Hu/cinesocial/internal/config"
	"github.com/Clark-Hu/cinesocial/internal/follow"
	httpserver "github.com/Clark-Hu/cinesocial/internal/http"
	"github.com/Clark-Hu/cinesocial/internal/repository"
	"github.com/Clark-Hu/cinesocial/internal/review"
	"github.com/Clark-Hu/cinesocial/internal/store"
	"github.com/Clark-Hu/cinesocial/internal/telemetry"
	"github.com/Clark-Hu/cinesocial/internal/tmdb"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}

	logger := log.New(os.Stdout, "[cinesocial] ", log.LstdFlags|log.Lshortfile)

	shutdownTracing, err := telemetry.Setup(ctx, "cinesocial", cfg.OTelEndpoint)
	if err != nil {
		log.Fatalf("init tracing: %v", err)
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			logger.Printf("tracing shutdown error: %v", err)
		}
	}()

	dbCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	storeOpts := store.Options{
		MaxConns:               int32(cfg.DBMaxConns),
		MinConns:               int32(cfg.DBMinConns),
		MaxConnIdleTime:        time.Duration(cfg.DBMaxIdleSecs) * time.Second,
		MaxConnLifetime:        time.Duration(cfg.DBMaxLifeSecs) * time.Second,
		ConnTimeout:            time.Duration(cfg.DBConnTimeoutSecs) * time.Second,
		StatementCacheCapacity: cfg.DBStatementCache,
		Logger:                 logger,
	}

	st, err := store.New(dbCtx, cfg.DBURL, storeOpts)
	if err != nil {
		log.Fatalf("connect database: %v", err)
	}
	defer st.Close()

	if cfg.DBAutoMigrate {
		if err := db.Apply(dbCtx, st.Pool()); err != nil {
			log.Fatalf("apply migrations: %v", err)
		}
		logger.Println("database migrations applied")
	}

	tmdbClient, err := tmdb.NewHTTPClient(cfg.TMDBURL, cfg.TMDBAPIKey, time.Duration(cfg.TMDBTimeoutSecs)*time.Second, logger)
	if err != nil {
		log.Fatalf("init tmdb client: %v", err)
	}
	boxClient, err := boxoffice.NewHTTPClient(cfg.BoxOfficeURL, cfg.BoxOfficeAPIKey, time.Duration(cfg.BoxOfficeTimeoutSecs)*time.Second, logger)
	if err != nil {
		log.Fatalf("init box office client: %v", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "cinesocial_db_pool_acquired_conns",
			Help: "Connections currently checked out of the database pool.",
		}, func() float64 { return float64(st.Stats().AcquiredConns()) }),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Name: "cinesocial_db_pool_total_conns",
			Help: "Connections currently open in the database pool.",
		}, func() float64 { return float64(st.Stats().TotalConns()) }),
	)

	repo := repository.New(st)
	location := cfg.CalendarLocation()

	engine := catalog.NewEngine(tmdbClient, boxClient, repo.Movies, catalog.Options{
		Language:    cfg.TMDBLanguage,
		Region:      cfg.TMDBRegion,
		Concurrency: cfg.ReconcileConcurrency,
		Metrics:     catalog.NewMetrics(reg),
		Logger:      logger,
	})
	reviews := review.NewService(review.Deps{
		Tx:       st,
		Movies:   repo.Movies,
		Reviews:  repo.Reviews,
		Users:    repo.Users,
		Fetcher:  tmdbClient,
		Language: cfg.TMDBLanguage,
		Location: location,
		Logger:   logger,
	})
	follows := follow.NewService(st, repo.Follows, repo.Users, logger)

	go catalog.NewScheduler(engine, cfg.SyncInterval(), cfg.SyncPages, logger).Run(ctx)

	server := httpserver.New(cfg, httpserver.Deps{
		Health:   st,
		Movies:   repo.Movies,
		Users:    repo.Users,
		Provider: tmdbClient,
		Reviews:  reviews,
		Follows:  follows,
		Catalog:  engine,
		Metrics:  promhttp.HandlerFor(reg, promhttp.HandlerOpts{}),
		Location: location,
	}, logger)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := server.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			serverErrCh <- err
			return
		}
		serverErrCh <- nil
	}()

	select {
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) && !errors.Is(err, context.Canceled) {
			log.Printf("server error: %v", err)
		}
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Printf("graceful shutdown error: %v", err)
	}
}
