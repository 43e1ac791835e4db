// Package config loads the storage core's YAML configuration: buffer pool
// capacity, data directory and page size, mirroring the teacher's
// NovaSqlConfig shape but trimmed to what this core actually needs.
package config

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/MartrixG/pagestore/internal/page"
)

// Config is the typed form of the YAML config file.
type Config struct {
	BufferPool struct {
		Capacity int `mapstructure:"capacity"`
	} `mapstructure:"buffer_pool"`
	Storage struct {
		DataDir  string `mapstructure:"data_dir"`
		PageSize int    `mapstructure:"page_size"`
	} `mapstructure:"storage"`
}

// defaults mirror a small single-user deployment: enough frames to hold a
// handful of tables' worth of pages pinned at once.
func defaults(v *viper.Viper) {
	v.SetDefault("buffer_pool.capacity", 64)
	v.SetDefault("storage.data_dir", ".")
	v.SetDefault("storage.page_size", page.Size)
}

// Load reads path as YAML and unmarshals it into a Config, filling in
// defaults for any key the file omits.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	defaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal %s: %w", path, err)
	}
	if cfg.Storage.PageSize != page.Size {
		return nil, fmt.Errorf(
			"config: storage.page_size %d does not match the built-in page size %d",
			cfg.Storage.PageSize, page.Size,
		)
	}
	if cfg.BufferPool.Capacity < 1 {
		return nil, fmt.Errorf("config: buffer_pool.capacity must be at least 1, got %d", cfg.BufferPool.Capacity)
	}
	return &cfg, nil
}
