package audit

import "fmt"

// Store kinds accepted by Config.Store.
const (
	StoreMemory   = "memory"
	StoreBolt     = "bolt"
	StorePostgres = "postgres"
)

// Config configures the audit service.
type Config struct {
	ListenAddr string         `json:"listen_addr" yaml:"listen_addr"`
	Store      string         `json:"store" yaml:"store"`
	BoltPath   string         `json:"bolt_path" yaml:"bolt_path"`
	Postgres   PostgresConfig `json:"postgres" yaml:"postgres"`
}

// NewStore opens the store selected by cfg.
func NewStore(cfg *Config) (Store, error) {
	switch cfg.Store {
	case "", StoreMemory:
		return NewInMemoryStore(), nil
	case StoreBolt:
		if cfg.BoltPath == "" {
			return nil, fmt.Errorf("bolt store requires bolt_path")
		}
		return NewBoltStore(cfg.BoltPath)
	case StorePostgres:
		return NewPostgresStore(&cfg.Postgres)
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}
