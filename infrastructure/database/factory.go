package database

import (
	"fmt"

	"github.com/jayllellis/do-spaces-media-offload/application/ports"
	"github.com/jayllellis/do-spaces-media-offload/infrastructure/config"
)

// CreateDatabase opens the database backing the postgres key ledger
func CreateDatabase(cfg *config.Config, obs ports.Observability) (ports.Database, error) {
	switch cfg.Adapters.Ledger {
	case "postgres":
		return NewPostgresAdapter(&cfg.Database, obs)
	default:
		return nil, fmt.Errorf("ledger adapter %q does not use a database", cfg.Adapters.Ledger)
	}
}
