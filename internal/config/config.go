package config

import (
	"fmt"
	"time"
	_ "time/tzdata"

	"github.com/caarlos0/env/v11"
	"golang.org/x/text/language"
)

// Config captures all runtime configuration derived from environment variables.
type Config struct {
	Port             string `env:"PORT" envDefault:"8080"`
	AuthToken        string `env:"AUTH_TOKEN"`
	ReadTimeoutSecs  int    `env:"SERVER_READ_TIMEOUT" envDefault:"15"`
	WriteTimeoutSecs int    `env:"SERVER_WRITE_TIMEOUT" envDefault:"15"`
	IdleTimeoutSecs  int    `env:"SERVER_IDLE_TIMEOUT" envDefault:"60"`

	DBURL             string `env:"DB_URL"`
	DBAutoMigrate     bool   `env:"DB_AUTO_MIGRATE" envDefault:"false"`
	DBMaxConns        int    `env:"DB_MAX_CONNS" envDefault:"20"`
	DBMinConns        int    `env:"DB_MIN_CONNS" envDefault:"2"`
	DBMaxIdleSecs     int    `env:"DB_MAX_CONN_IDLE_SECS" envDefault:"300"`
	DBMaxLifeSecs     int    `env:"DB_MAX_CONN_LIFETIME_SECS" envDefault:"3600"`
	DBConnTimeoutSecs int    `env:"DB_CONN_TIMEOUT_SECS" envDefault:"10"`
	DBStatementCache  int    `env:"DB_STATEMENT_CACHE_CAPACITY" envDefault:"256"`

	TMDBURL         string `env:"TMDB_URL" envDefault:"https://api.themoviedb.org/3"`
	TMDBAPIKey      string `env:"TMDB_API_KEY"`
	TMDBLanguage    string `env:"TMDB_LANGUAGE" envDefault:"ko-KR"`
	TMDBRegion      string `env:"TMDB_REGION" envDefault:"KR"`
	TMDBTimeoutSecs int    `env:"TMDB_TIMEOUT_SECS" envDefault:"5"`

	BoxOfficeURL         string `env:"BOXOFFICE_URL" envDefault:"http://www.kobis.or.kr/kobisopenapi/webservice/rest/boxoffice"`
	BoxOfficeAPIKey      string `env:"BOXOFFICE_API_KEY"`
	BoxOfficeTimeoutSecs int    `env:"BOXOFFICE_TIMEOUT_SECS" envDefault:"5"`

	SyncIntervalMins     int    `env:"SYNC_INTERVAL_MINS" envDefault:"0"`
	SyncPages            int    `env:"SYNC_PAGES" envDefault:"1"`
	ReconcileConcurrency int    `env:"RECONCILE_CONCURRENCY" envDefault:"4"`
	CalendarTimezone     string `env:"CALENDAR_TZ" envDefault:"Asia/Seoul"`

	OTelEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

// Load reads configuration from environment variables, applying defaults and validation.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if cfg.AuthToken == "" {
		return Config{}, fmt.Errorf("AUTH_TOKEN is required")
	}
	if cfg.DBURL == "" {
		return Config{}, fmt.Errorf("DB_URL is required")
	}
	if cfg.TMDBAPIKey == "" {
		return Config{}, fmt.Errorf("TMDB_API_KEY is required")
	}
	if cfg.BoxOfficeAPIKey == "" {
		return Config{}, fmt.Errorf("BOXOFFICE_API_KEY is required")
	}
	if cfg.TMDBTimeoutSecs <= 0 {
		return Config{}, fmt.Errorf("TMDB_TIMEOUT_SECS must be positive")
	}
	if cfg.BoxOfficeTimeoutSecs <= 0 {
		return Config{}, fmt.Errorf("BOXOFFICE_TIMEOUT_SECS must be positive")
	}
	if _, err := language.Parse(cfg.TMDBLanguage); err != nil {
		return Config{}, fmt.Errorf("TMDB_LANGUAGE must be a BCP 47 tag: %w", err)
	}
	if _, err := language.ParseRegion(cfg.TMDBRegion); err != nil {
		return Config{}, fmt.Errorf("TMDB_REGION must be an ISO 3166-1 region: %w", err)
	}
	if cfg.SyncIntervalMins < 0 {
		return Config{}, fmt.Errorf("SYNC_INTERVAL_MINS must be non-negative")
	}
	if cfg.SyncPages <= 0 {
		return Config{}, fmt.Errorf("SYNC_PAGES must be positive")
	}
	if cfg.ReconcileConcurrency <= 0 {
		return Config{}, fmt.Errorf("RECONCILE_CONCURRENCY must be positive")
	}
	if _, err := time.LoadLocation(cfg.CalendarTimezone); err != nil {
		return Config{}, fmt.Errorf("CALENDAR_TZ is not a known time zone: %w", err)
	}
	if cfg.DBMaxConns <= 0 {
		return Config{}, fmt.Errorf("DB_MAX_CONNS must be positive")
	}
	if cfg.DBMinConns < 0 {
		return Config{}, fmt.Errorf("DB_MIN_CONNS must be non-negative")
	}
	if cfg.DBMaxConns > 0 && cfg.DBMinConns > cfg.DBMaxConns {
		return Config{}, fmt.Errorf("DB_MIN_CONNS cannot exceed DB_MAX_CONNS")
	}
	if cfg.DBStatementCache < 0 {
		return Config{}, fmt.Errorf("DB_STATEMENT_CACHE_CAPACITY must be non-negative")
	}

	return cfg, nil
}

// CalendarLocation resolves CalendarTimezone, falling back to UTC.
func (c Config) CalendarLocation() *time.Location {
	if c.CalendarTimezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(c.CalendarTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// SyncInterval returns the periodic sync interval; zero disables the scheduler.
func (c Config) SyncInterval() time.Duration {
	return time.Duration(c.SyncIntervalMins) * time.Minute
}
