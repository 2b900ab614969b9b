package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/dmitrijs2005/pastekeeper/internal/flagx"
	"github.com/dmitrijs2005/pastekeeper/internal/timex"
)

// JsonConfig is the on-disk shape of the configuration file. Pointer fields
// distinguish "absent" from zero so that only keys present in the file
// override defaults.
type JsonConfig struct {
	DatabasePath    *string         `json:"database_path"`
	CacheSize       *int            `json:"cache_size"`
	MaxExpiration   *timex.Duration `json:"max_expiration"`
	BlockingWorkers *int            `json:"blocking_workers"`
	LogLevel        *string         `json:"log_level"`
}

// parseJson overlays values from the file named by -c/-config, if any.
func parseJson(config *Config, args []string) error {
	path := flagx.ConfigPath(args)
	if path == "" {
		return nil
	}

	file, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	if c.DatabasePath != nil {
		config.DatabasePath = *c.DatabasePath
	}
	if c.CacheSize != nil {
		config.CacheSize = *c.CacheSize
	}
	if c.MaxExpiration != nil {
		config.MaxExpiration = c.MaxExpiration.Duration
	}
	if c.BlockingWorkers != nil {
		config.BlockingWorkers = *c.BlockingWorkers
	}
	if c.LogLevel != nil {
		config.LogLevel = *c.LogLevel
	}
	return nil
}
