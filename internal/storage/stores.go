// Package storage selects the vote and rating backend named by STORE_DRIVER.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/rs/zerolog/log"

	"hoodrate/internal/domain"
	"hoodrate/internal/shared"
	"hoodrate/internal/storage/memory"
	mysqlrepo "hoodrate/internal/storage/mysql"
	pgrepo "hoodrate/internal/storage/postgres"
)

// Backend is everything the services need from one store.
type Backend interface {
	domain.VoteStore
	domain.DriftFinder
	domain.RatingRepository
}

var (
	_ Backend = (*memory.Store)(nil)
	_ Backend = (*mysqlrepo.Repo)(nil)
	_ Backend = (*pgrepo.Repo)(nil)
)

// Open connects the configured backend. The returned close func is never nil.
func Open(ctx context.Context, cfg shared.Config) (Backend, func() error, error) {
	switch cfg.StoreDriver {
	case shared.DriverMySQL:
		db, err := sql.Open("mysql", cfg.MySQLDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("sql.Open: %w", err)
		}
		db.SetMaxOpenConns(32)
		db.SetMaxIdleConns(16)
		db.SetConnMaxLifetime(30 * time.Minute)

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			_ = db.Close()
			return nil, nil, fmt.Errorf("mysql ping: %w", err)
		}
		log.Info().Str("driver", cfg.StoreDriver).Msg("database connection ok")
		return mysqlrepo.New(db), db.Close, nil

	case shared.DriverPostgres:
		db, err := pgrepo.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		log.Info().Str("driver", cfg.StoreDriver).Msg("database connection ok")
		return pgrepo.New(db), func() error { return pgrepo.Close(db) }, nil

	case shared.DriverMemory:
		log.Warn().Msg("using in-memory store; data is lost on exit")
		return memory.New(), func() error { return nil }, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}
