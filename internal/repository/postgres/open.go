package postgres

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/jwalitptl/hmis-api/internal/config"
)

// Open connects, optionally migrates, and returns a ready Store
func Open(ctx context.Context, cfg config.DatabaseConfig) (*Store, error) {
	db, err := NewDB(cfg)
	if err != nil {
		return nil, err
	}

	if cfg.AutoMigrate {
		if err := Migrate(ctx, db); err != nil {
			db.Close()
			return nil, fmt.Errorf("auto migrate: %w", err)
		}
	}

	log.Info().
		Str("driver", cfg.Driver).
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("database", cfg.Name).
		Msg("connected to database")
	return NewStore(db), nil
}
