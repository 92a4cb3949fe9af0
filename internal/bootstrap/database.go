package bootstrap

import (
	"context"
	"fmt"
	"log"

	"github.com/go-authgate/sallyport/internal/config"
	"github.com/go-authgate/sallyport/internal/store"
)

// initializeDatabase creates and initializes the database connection
func initializeDatabase(ctx context.Context, cfg *config.Config) (*store.Store, error) {
	// Create timeout context for this specific operation
	ctx, cancel := context.WithTimeout(ctx, cfg.DBInitTimeout)
	defer cancel()

	db, err := store.New(ctx, cfg.DatabaseDriver, cfg.DatabaseDSN, cfg.SeedClientsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	active, err := countActiveClients(ctx, db)
	if err != nil {
		_ = db.Close(context.Background())
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	if active == 0 {
		log.Printf("[Store] WARNING: no active clients registered; set SEED_CLIENTS_FILE to register some")
	} else {
		log.Printf("[Store] %d active client(s) registered", active)
	}
	return db, nil
}

func countActiveClients(ctx context.Context, db *store.Store) (int, error) {
	clients, err := db.ListClients(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, c := range clients {
		if c.IsActive {
			n++
		}
	}
	return n, nil
}
