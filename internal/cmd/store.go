package cmd

import (
	"context"
	"fmt"

	"github.com/loggate/loggate/internal/config"
	"github.com/loggate/loggate/internal/core/store"
)

func openStore(ctx context.Context, cfg *config.Config) (*store.Store, error) {
	db, err := store.Open(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate store: %w", err)
	}

	return db, nil
}
