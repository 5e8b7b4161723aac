package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	mongodriver "go.mongodb.org/mongo-driver/mongo"

	"rcaflow/internal/docstore"
	httpapi "rcaflow/internal/http"
	"rcaflow/internal/platform/config"
	"rcaflow/internal/platform/mongo"
	"rcaflow/internal/platform/postgres"
	redisclient "rcaflow/internal/platform/redis"
)

// infra holds the connections shared by the commands. Everything it opens is
// released by close in reverse order.
type infra struct {
	backend docstore.Backend
	db      *sql.DB
	redis   *redisclient.Client
	checks  []httpapi.Check
	closers []func()
}

// openInfra connects the configured document store and Redis. Postgres
// migrations run on every start.
func openInfra(ctx context.Context, cfg config.Config, logger *slog.Logger) (*infra, error) {
	in := &infra{}
	if err := in.openBackend(ctx, cfg, logger); err != nil {
		in.close()
		return nil, err
	}

	rc, err := redisclient.New(ctx, cfg.Redis)
	if err != nil {
		in.close()
		return nil, err
	}
	if rc != nil {
		in.redis = rc
		in.checks = append(in.checks, httpapi.Check{Name: "redis", Probe: rc.Health})
		in.closers = append(in.closers, func() { _ = rc.Close() })
		logger.Info("redis connected")
	}
	return in, nil
}

func (in *infra) openBackend(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	switch cfg.Store.Backend {
	case "postgres":
		db, err := postgres.Open(ctx, cfg.Postgres)
		if err != nil {
			return err
		}
		in.closers = append(in.closers, func() { _ = db.Close() })
		applied, err := postgres.Migrate(ctx, db)
		if err != nil {
			return err
		}
		for _, name := range applied {
			logger.Info("applied migration", "name", name)
		}
		in.db = db
		in.backend = docstore.NewPostgres(db)
		in.checks = append(in.checks, httpapi.Check{Name: "postgres", Probe: db.PingContext})
	case "mongo":
		client, err := mongo.Connect(ctx, cfg.Mongo)
		if err != nil {
			return err
		}
		in.closers = append(in.closers, func() { _ = client.Disconnect(context.Background()) })
		in.backend = docstore.NewMongo(client.Database(cfg.Mongo.Database), cfg.Mongo.CASRetries)
		in.checks = append(in.checks, httpapi.Check{Name: "mongo", Probe: pingMongo(client)})
	case "memory":
		in.backend = docstore.NewMemory()
		logger.Warn("using in-memory document store, data is lost on restart")
	default:
		return fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
	logger.Info("document store ready", "backend", cfg.Store.Backend)
	return nil
}

func pingMongo(client *mongodriver.Client) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		return client.Ping(ctx, nil)
	}
}

func (in *infra) close() {
	for i := len(in.closers) - 1; i >= 0; i-- {
		in.closers[i]()
	}
	in.closers = nil
}
