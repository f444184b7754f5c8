package repository

import (
	"context"
	"fmt"

	"github.com/jayllellis/do-spaces-media-offload/application/ports"
	"github.com/jayllellis/do-spaces-media-offload/infrastructure/config"
	"github.com/jayllellis/do-spaces-media-offload/infrastructure/database"
)

// CreateKeyLedger builds the ledger selected by config. The postgres ledger
// owns its connection and implements io.Closer.
func CreateKeyLedger(ctx context.Context, cfg *config.Config, obs ports.Observability) (ports.KeyLedger, error) {
	switch cfg.Adapters.Ledger {
	case "memory":
		return NewMemoryKeyLedger(), nil

	case "postgres":
		db, err := database.CreateDatabase(cfg, obs)
		if err != nil {
			return nil, err
		}

		ledger, err := NewSQLKeyLedger(db, obs)
		if err != nil {
			db.Close()
			return nil, err
		}
		if err := ledger.Migrate(ctx); err != nil {
			db.Close()
			return nil, err
		}
		return ledger, nil

	default:
		return nil, fmt.Errorf("unsupported ledger adapter: %s", cfg.Adapters.Ledger)
	}
}
