package clipstatsctl

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/clipstats/clipstats/internal/config"
	"github.com/clipstats/clipstats/internal/jobs"
	"github.com/clipstats/clipstats/internal/query"
	"github.com/clipstats/clipstats/internal/query/athena"
	"github.com/clipstats/clipstats/internal/query/sqldb"
	"github.com/clipstats/clipstats/internal/storage"
	"github.com/clipstats/clipstats/internal/storage/s3"
)

func defaultQueryClient(ctx context.Context, cfg config.Config, logger *slog.Logger, store storage.ObjectStore) (query.Client, func() error, error) {
	switch cfg.Query.Backend {
	case config.BackendAthena:
		client, err := athena.New(ctx, athena.Config{Region: cfg.AWS.Region, Endpoint: cfg.AWS.Endpoint}, logger)
		if err != nil {
			return nil, nil, err
		}
		return client, func() error { return nil }, nil
	case config.BackendDuckDB, config.BackendPostgres:
		db, err := defaultOpenDB(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		engine := sqldb.NewEngine(db, sqlDriver(cfg.Query.Backend))
		engine.Store = store
		engine.Logger = logger
		return engine, engine.Close, nil
	default:
		return nil, nil, fmt.Errorf("unsupported query backend %q", cfg.Query.Backend)
	}
}

func defaultOpenDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	return sqldb.Open(ctx, sqldb.DBConfig{
		Driver:          sqlDriver(cfg.Query.Backend),
		DSN:             cfg.Query.DSN,
		MaxOpenConns:    cfg.Query.MaxOpenConns,
		ConnMaxLifetime: cfg.Query.ConnMaxLifetime,
	})
}

func sqlDriver(backend config.Backend) string {
	if backend == config.BackendPostgres {
		return sqldb.DriverPostgres
	}
	return sqldb.DriverDuckDB
}

func defaultObjectStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (ObjectStore, error) {
	store, err := s3.New(ctx, s3.Config{
		Endpoint:         cfg.ObjectStore.Endpoint,
		Region:           cfg.ObjectStore.Region,
		Bucket:           cfg.ObjectStore.Bucket,
		AccessKeyID:      cfg.ObjectStore.AccessKeyID,
		SecretAccessKey:  cfg.ObjectStore.SecretAccessKey,
		UseSSL:           cfg.ObjectStore.UseSSL,
		Prefix:           cfg.ObjectStore.Prefix,
		AutoCreateBucket: cfg.ObjectStore.AutoCreateBucket,
	})
	if err != nil {
		return nil, err
	}
	store.Logger = logger
	return store, nil
}

func defaultJobClient(ctx context.Context, cfg config.Config, logger *slog.Logger) (JobClient, error) {
	client, err := jobs.New(ctx, jobs.Config{Region: cfg.AWS.Region, Endpoint: cfg.AWS.Endpoint}, logger)
	if err != nil {
		return nil, err
	}
	return client, nil
}
