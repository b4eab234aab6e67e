// Package config loads runtime settings for the Nocturne client. Values are
// resolved in three layers — defaults, then an optional JSON file, then
// command-line flags — with later layers taking precedence.
package config

import "time"

// Config holds runtime settings for the Nocturne CLI.
type Config struct {
	// ServerEndpointURL is the base URL of the backend HTTP API.
	ServerEndpointURL string
	// DatabasePath is the local SQLite file.
	DatabasePath string
	// OnlineCheckInterval is how often the connectivity watcher probes
	// server reachability.
	OnlineCheckInterval time.Duration
	// RequestTimeout applies to each backend HTTP request.
	RequestTimeout time.Duration
	// Language hints the analysis output language.
	Language string
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointURL = "http://127.0.0.1:8080"
	c.DatabasePath = "nocturne.db"
	c.OnlineCheckInterval = 3 * time.Second
	c.RequestTimeout = 12 * time.Second
	c.Language = "en"
}

// LoadConfig constructs a Config, applies defaults, then overlays values
// from JSON (if present) and command-line flags (if present).
func LoadConfig() *Config {
	cfg := &Config{}
	cfg.LoadDefaults()
	parseJson(cfg)
	parseFlags(cfg)
	return cfg
}
