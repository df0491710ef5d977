package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/aura-proctor/backend/config"
	"github.com/aura-proctor/backend/internal/focusevents"
	"github.com/aura-proctor/backend/internal/localstore"
	"github.com/aura-proctor/backend/internal/mirror"
	"github.com/aura-proctor/backend/internal/networklog"
	"github.com/aura-proctor/backend/internal/participants"
	"github.com/aura-proctor/backend/pkg/database"
)

type participantStore interface {
	mirror.ParticipantStore
	participants.Store
}

type historyStore interface {
	mirror.HistoryStore
	participants.HistoryReader
}

type networkStore interface {
	mirror.NetworkLogStore
	participants.NetworkReader
}

// stores bundles the persistence of one database driver.
type stores struct {
	participants participantStore
	history      historyStore
	network      networkStore
	ping         func(ctx context.Context) error
	close        func()
}

func openStores(ctx context.Context, cfg config.DatabaseConfig, logger *zap.Logger) (*stores, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		db, err := localstore.Open(ctx, cfg.DSN())
		if err != nil {
			return nil, err
		}
		logger.Info("SQLite store opened", zap.String("dsn", cfg.DSN()))
		return &stores{
			participants: db,
			history:      db,
			network:      db,
			ping:         db.Ping,
			close:        func() { _ = db.Close() },
		}, nil
	case config.DriverPostgres:
		pool, err := database.NewPostgresPool(ctx, cfg.DSN(), int32(cfg.MaxConns), logger)
		if err != nil {
			return nil, err
		}
		if err := database.Migrate(ctx, pool, logger); err != nil {
			pool.Close()
			return nil, fmt.Errorf("migrate: %w", err)
		}
		return &stores{
			participants: participants.NewRepository(pool),
			history:      focusevents.NewRepository(pool),
			network:      networklog.NewRepository(pool),
			ping:         pool.Ping,
			close:        pool.Close,
		}, nil
	default:
		return nil, fmt.Errorf("unknown database driver %q", cfg.Driver)
	}
}
