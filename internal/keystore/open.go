package keystore

import (
	"fmt"

	"github.com/TheMichaelB/syncvault/internal/config"
	"github.com/TheMichaelB/syncvault/internal/events"
)

// Open creates the durable store named by cfg.Backend.
func Open(cfg *config.StorageConfig, logger *events.Logger) (Store, error) {
	return openBackend(cfg.Backend, "credentials", cfg, logger)
}

// OpenLegacy creates the store holding pre-encryption entries.
func OpenLegacy(cfg *config.StorageConfig, logger *events.Logger) (Store, error) {
	return openBackend(cfg.LegacyBackend, "legacy", cfg, logger)
}

func openBackend(backend, name string, cfg *config.StorageConfig, logger *events.Logger) (Store, error) {
	logger.WithFields(map[string]interface{}{
		"backend": backend,
		"name":    name,
	}).Debug("Opening credential store")

	switch backend {
	case config.BackendFile:
		return NewFileStore(cfg.Path(name+".json"), logger)
	case config.BackendSQLite:
		return NewSQLiteStore(cfg.Path(name+".db"), logger)
	case config.BackendBolt:
		return NewBoltStore(cfg.Path(name+".bolt"), logger)
	case config.BackendKeyring:
		service := cfg.KeyringService
		if name != "credentials" {
			service += "-" + name
		}
		return NewKeyringStore(service, logger), nil
	case config.BackendMemory:
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", backend)
	}
}
