package agent

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm/logger"

	config "github.com/boutdepapier/dynamicfilters/internal/config/server"
	"github.com/boutdepapier/dynamicfilters/pkg/db/store"
)

func gormLogLevel(level string) logger.LogLevel {
	switch strings.ToLower(level) {
	case "error":
		return logger.Error
	case "warn", "warning":
		return logger.Warn
	case "info", "debug":
		return logger.Info
	}
	return logger.Silent
}

// OpenStore opens and connects the filter store described by cfg. Migrations
// are left to the caller.
func OpenStore(ctx context.Context, cfg config.MetadataServerConfig) (*store.GormStore, error) {
	var (
		st  *store.GormStore
		err error
	)

	switch cfg.Type {
	case store.DialectSQLite:
		st, err = store.NewSQLiteStore(store.SQLiteConfig{
			Path:     cfg.SQLite.Path,
			LogLevel: gormLogLevel(cfg.LogLevel),
		})
	case store.DialectPostgres:
		st, err = store.NewPostgresStore(store.PostgresConfig{
			DSN:      cfg.Postgres.DSN,
			LogLevel: gormLogLevel(cfg.LogLevel),
		})
	default:
		return nil, fmt.Errorf("unsupported metadata type '%s'", cfg.Type)
	}
	if err != nil {
		return nil, err
	}

	if err := st.Connect(ctx); err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to connect to %s store: %w", cfg.Type, err)
	}
	return st, nil
}
