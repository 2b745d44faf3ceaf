// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Keep fields unexported where possible and use functional options.
// - Provide New(...Option) initializer to build a Config with defaults.
// - All future functions must accept context.Context as the first parameter.
// - External errors must be wrapped via this package's error helpers.
package config

// Store driver names accepted by StoreDriver.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
)

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// StoreDriver selects the entity store backend: memory or postgres.
	StoreDriver string `koanf:"store_driver"`

	// PostgresDSN is the connection string used when store_driver=postgres.
	PostgresDSN string `koanf:"postgres_dsn"`

	// AssignMaxAttempts bounds capacity-conflict retries per assignment.
	AssignMaxAttempts int `koanf:"assign_max_attempts"`

	// LeadMaxAttempts bounds find/insert retries during lead resolution.
	LeadMaxAttempts int `koanf:"lead_max_attempts"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		Addr:              ":9080",
		StoreDriver:       StoreMemory,
		PostgresDSN:       "",
		AssignMaxAttempts: 3,
		LeadMaxAttempts:   3,
	}
}
