package bootstrap

import (
	"log"

	"github.com/go-authgate/sallyport/internal/config"
	"github.com/go-authgate/sallyport/internal/core"
	"github.com/go-authgate/sallyport/internal/grantstore"

	"github.com/redis/go-redis/v9"
)

// initializeGrantStore picks the backend for codes, refresh grants and
// revocation markers and wraps it with metrics. The memory store is also
// returned so its sweeper can be scheduled.
func initializeGrantStore(
	cfg *config.Config,
	rdb *redis.Client,
	m core.Recorder,
) (core.GrantStore, *grantstore.MemoryStore) {
	if cfg.GrantStoreType == config.GrantStoreRedis {
		log.Printf("Grant store: redis (prefix=%s, timeout=%s)", cfg.GrantStorePrefix, cfg.GrantStoreTimeout)
		return grantstore.NewInstrumented(
			grantstore.NewRedisStore(rdb, cfg.GrantStorePrefix, cfg.GrantStoreTimeout),
			m,
		), nil
	}

	log.Println("Grant store: memory (single instance only)")
	mem := grantstore.NewMemoryStore()
	return grantstore.NewInstrumented(mem, m), mem
}
