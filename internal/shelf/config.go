package shelf

import (
	"shelf/internal/storage"
)

// KV transport drivers.
const (
	KVDriverMemory = "memory"
	KVDriverMinio  = "minio"
	KVDriverNats   = "nats"
)

// Config carries everything the server needs, constructed once and
// passed into every component; nothing reads ambient global state.
type Config struct {
	// DBPath is the SQLite database holding metadata, path mappings,
	// and the relational chunk table.
	DBPath string

	// Backend pins all writes to one backend ("kv" or "d1"); empty
	// selects size-based hybrid routing.
	Backend string

	// HybridThreshold is the byte size at or above which hybrid
	// routing picks the key-value backend. Zero means the default
	// (1MB).
	HybridThreshold int64

	// KVChunkSize and SQLChunkSize are the chunk boundaries per
	// backend. Zero means the default (1MB).
	KVChunkSize  int
	SQLChunkSize int

	// KVDriver selects the key-value transport: memory, minio, or
	// nats.
	KVDriver string
	Minio    storage.MinioConfig
	Nats     storage.NatsConfig

	// AuthToken, when set, requires "Authorization: Bearer <token>"
	// on every API request.
	AuthToken string
}

// ConfigOption mutates a Config during construction.
type ConfigOption func(*Config)

// WithDBPath sets the SQLite database path.
func WithDBPath(path string) ConfigOption {
	return func(cfg *Config) {
		cfg.DBPath = path
	}
}

// WithBackend pins all writes to a single backend.
func WithBackend(backend string) ConfigOption {
	return func(cfg *Config) {
		cfg.Backend = backend
	}
}

// WithHybridThreshold sets the size boundary for hybrid routing.
func WithHybridThreshold(bytes int64) ConfigOption {
	return func(cfg *Config) {
		cfg.HybridThreshold = bytes
	}
}

// WithChunkSizes sets the per-backend chunk boundaries.
func WithChunkSizes(kv, relational int) ConfigOption {
	return func(cfg *Config) {
		cfg.KVChunkSize = kv
		cfg.SQLChunkSize = relational
	}
}

// WithKVDriver selects the key-value transport.
func WithKVDriver(driver string) ConfigOption {
	return func(cfg *Config) {
		cfg.KVDriver = driver
	}
}

// WithMinio configures the MinIO transport.
func WithMinio(mc storage.MinioConfig) ConfigOption {
	return func(cfg *Config) {
		cfg.Minio = mc
	}
}

// WithNats configures the NATS JetStream transport.
func WithNats(nc storage.NatsConfig) ConfigOption {
	return func(cfg *Config) {
		cfg.Nats = nc
	}
}

// WithAuthToken enables bearer-token authentication.
func WithAuthToken(token string) ConfigOption {
	return func(cfg *Config) {
		cfg.AuthToken = token
	}
}

// NewConfig builds a Config from options.
func NewConfig(opts ...ConfigOption) Config {
	cfg := Config{
		KVDriver: KVDriverMemory,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}
