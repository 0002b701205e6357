// Package config provides configuration helpers and TOML parsing.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Store backends.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Game  GameConfig  `toml:"game"`
	Store StoreConfig `toml:"store"`
	Log   LogConfig   `toml:"log"`
}

// GameConfig maps play-related settings.
type GameConfig struct {
	DataDir      *string `toml:"data-dir"`
	Shuffle      *bool   `toml:"shuffle"`
	PassAccuracy *int    `toml:"pass-accuracy"`
}

// StoreConfig selects where progress is kept.
type StoreConfig struct {
	Backend       *string `toml:"backend"`
	Path          *string `toml:"path"`
	RedisAddr     *string `toml:"redis-addr"`
	RedisPassword *string `toml:"redis-password"`
	RedisDB       *int    `toml:"redis-db"`
}

// LogConfig maps logging settings.
type LogConfig struct {
	Level *string `toml:"level"`
	File  *string `toml:"file"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return FileConfig{}, fmt.Errorf("unknown config key %q", undecoded[0].String())
	}
	if err := cfg.validate(); err != nil {
		return FileConfig{}, err
	}
	return cfg, nil
}

func (c FileConfig) validate() error {
	if c.Store.Backend != nil {
		switch *c.Store.Backend {
		case BackendSQLite, BackendRedis, BackendMemory:
		default:
			return fmt.Errorf("store.backend must be one of sqlite, redis, memory (got %q)", *c.Store.Backend)
		}
	}
	if p := c.Game.PassAccuracy; p != nil && (*p < 0 || *p > 100) {
		return fmt.Errorf("game.pass-accuracy must be between 0 and 100")
	}
	return nil
}

// StringOr returns *v, or fallback when v is nil.
func StringOr(v *string, fallback string) string {
	if v == nil {
		return fallback
	}
	return *v
}

// IntOr returns *v, or fallback when v is nil.
func IntOr(v *int, fallback int) int {
	if v == nil {
		return fallback
	}
	return *v
}
