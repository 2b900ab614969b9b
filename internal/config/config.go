// Package config handles configuration for pastekeeper, including defaults,
// JSON overlay, and command-line flags.
package config

import (
	"time"
)

// Config holds runtime settings.
//
// Fields:
//   - DatabasePath: SQLite file; empty or ":memory:" keeps everything in memory.
//   - CacheSize: number of rendered views kept in the LRU cache.
//   - MaxExpiration: upper bound on entry lifetime; zero disables the clamp.
//   - BlockingWorkers: concurrent compression/render jobs; zero means GOMAXPROCS.
//   - LogLevel: debug, info, warn or error.
type Config struct {
	DatabasePath    string
	CacheSize       int
	MaxExpiration   time.Duration
	BlockingWorkers int
	LogLevel        string
}

// LoadDefaults populates Config with defaults suitable for local use.
func (c *Config) LoadDefaults() {
	c.DatabasePath = ""
	c.CacheSize = 128
	c.MaxExpiration = 0
	c.BlockingWorkers = 0
	c.LogLevel = "info"
}

// InMemory reports whether the database should live only in memory.
func (c *Config) InMemory() bool {
	return c.DatabasePath == "" || c.DatabasePath == ":memory:"
}

// LoadConfig builds a Config by applying defaults, then overlaying values
// from an optional JSON file and finally from command-line flags in args.
func LoadConfig(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if err := parseJson(cfg, args); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	return cfg, nil
}
