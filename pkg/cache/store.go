package cache

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ashpect/cacheproxy/pkg/config"
)

// New builds the body store selected by cfg.
func New(cfg config.CacheCfg, logger zerolog.Logger) (Cache[string, []byte], error) {
	switch cfg.Store {
	case config.StoreMemory, "":
		shards := cfg.Shards
		if shards <= 0 {
			shards = defaultShards
		}
		return NewBytes(WithShards[string, []byte](shards)), nil
	case config.StoreSQLite:
		store, err := NewSQLite(cfg.DSN, logger)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownStore, cfg.Store)
	}
}
