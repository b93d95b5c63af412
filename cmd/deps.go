package main

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/acceslibre/erpsync/internal/dataset"
	"github.com/acceslibre/erpsync/internal/db"
	"github.com/acceslibre/erpsync/internal/fetcher"
	"github.com/acceslibre/erpsync/internal/metrics"
	"github.com/acceslibre/erpsync/internal/store"
	"github.com/acceslibre/erpsync/pkg/geocode"
)

// openPool connects to the directory database.
func openPool(ctx context.Context) (*pgxpool.Pool, error) {
	if cfg.Store.DatabaseURL == "" {
		return nil, eris.New("no database_url configured (set store.database_url or ERPSYNC_STORE_DATABASE_URL)")
	}
	pgxCfg, err := pgxpool.ParseConfig(cfg.Store.DatabaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "parse database_url")
	}
	if cfg.Store.MaxConns > 0 {
		pgxCfg.MaxConns = cfg.Store.MaxConns
	}
	if cfg.Store.MinConns > 0 {
		pgxCfg.MinConns = cfg.Store.MinConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "create connection pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "ping database")
	}
	return pool, nil
}

// openLedger opens and migrates the run ledger. The postgres driver shares
// the directory pool.
func openLedger(ctx context.Context, pool db.Pool) (store.Store, error) {
	var (
		st  store.Store
		err error
	)
	switch cfg.Store.Driver {
	case "sqlite":
		st, err = store.NewSQLite(cfg.Store.SQLitePath)
		if err != nil {
			return nil, err
		}
	case "postgres":
		st = store.NewPostgresWithPool(pool)
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
	if err := st.Migrate(ctx); err != nil {
		st.Close() //nolint:errcheck
		return nil, err
	}
	return st, nil
}

// newGeocoder builds the provider chain with the configured cache. The
// returned func releases the cache.
func newGeocoder(ctx context.Context, pool db.Pool, m *metrics.Metrics) (*geocode.Chain, func(), error) {
	providers, err := geocode.NewProviders(cfg.Geocode.Providers, geocode.Endpoints{
		BAN:           cfg.Geocode.BANURL,
		Geoplateforme: cfg.Geocode.GeoplateformeURL,
		OSM:           cfg.Geocode.OSMURL,
		UserAgent:     cfg.Fetch.UserAgent,
	}, &http.Client{Timeout: cfg.Geocode.Timeout})
	if err != nil {
		return nil, nil, err
	}

	opts := []geocode.ChainOption{
		geocode.WithMinScore(cfg.Geocode.MinScore),
		geocode.WithTimeout(cfg.Geocode.Timeout),
		geocode.WithBreakers(cfg.Geocode.BreakerThreshold, cfg.Geocode.BreakerReset),
		geocode.WithCourtesyDelay(cfg.Geocode.CourtesyDelay),
		geocode.WithObserver(m.ObserveProvider),
	}
	release := func() {}
	switch cfg.Geocode.Cache {
	case "postgres":
		opts = append(opts, geocode.WithCache(geocode.NewPGCache(pool, "geocode_cache")))
	case "sqlite":
		c, err := geocode.NewSQLiteCache(ctx, cfg.Geocode.CachePath)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, geocode.WithCache(c))
		release = func() { c.Close() } //nolint:errcheck
	case "", "none":
	default:
		return nil, nil, eris.Errorf("unsupported geocode cache: %s", cfg.Geocode.Cache)
	}
	return geocode.NewChain(providers, opts...), release, nil
}

func newLocator() *fetcher.Locator {
	httpFetcher := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{
		UserAgent:      cfg.Fetch.UserAgent,
		Timeout:        cfg.Fetch.Timeout,
		MaxRetries:     cfg.Fetch.MaxRetries,
		InitialBackoff: 2 * time.Second,
		RatePerHost:    cfg.Fetch.RatePerHost,
	})
	ftpFetcher := fetcher.NewFTPFetcher(fetcher.FTPOptions{Timeout: cfg.Fetch.Timeout})
	return fetcher.NewLocator(httpFetcher, ftpFetcher, cfg.Fetch.TempDir)
}

// loadRegistry returns the built-in datasets merged with the datasets file.
func loadRegistry() (*dataset.Registry, error) {
	reg := dataset.NewRegistry()
	if cfg.Import.DatasetsFile != "" {
		if err := reg.LoadFile(cfg.Import.DatasetsFile); err != nil {
			return nil, err
		}
	}
	return reg, nil
}
