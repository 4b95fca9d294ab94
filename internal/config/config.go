// Package config loads and holds all cache server configuration.
// Settings are layered: defaults → cachewire.json (JSON-with-comments) → environment variables → CLI flags (flags win).
package config

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/tailscale/hujson"
)

// Config holds the full cache server configuration.
type Config struct {
	BindAddress  string `json:"bindAddress"`
	Port         int    `json:"port"`
	AdminPort    int    `json:"adminPort"`
	Capacity     int    `json:"capacity"`
	Policy       string `json:"policy"` // "lru", "clock", or "lfu"
	MaxKeyLen    int    `json:"maxKeyLen"`
	MaxValLen    int    `json:"maxValLen"`
	ShardCount   int    `json:"shardCount"` // 1 = single shared mutex, no sharding
	TelnetCompat bool   `json:"telnetCompat"`
	AdminToken   string `json:"adminToken"`
	CapacityFile string `json:"capacityFile"` // path to persisted runtime capacity override
	LogLevel     string `json:"logLevel"`
}

// Load returns config with defaults overridden by cachewire.json and env vars.
func Load() *Config {
	cfg := defaults()
	loadFile(cfg, "cachewire.json")
	loadEnv(cfg)
	return cfg
}

func defaults() *Config {
	return &Config{
		BindAddress:  "127.0.0.1",
		Port:         4321,
		AdminPort:    4322,
		Capacity:     360,
		Policy:       "lru",
		MaxKeyLen:    256,
		MaxValLen:    512,
		ShardCount:   1,
		TelnetCompat: true,
		CapacityFile: "cachewire-capacity.json",
		LogLevel:     "info",
	}
}

// loadFile reads a JSON-with-comments config file (JSONC, via hujson) and
// merges it onto cfg. Missing files are silently skipped — the file is
// optional.
func loadFile(cfg *Config, path string) {
	data, err := os.ReadFile(path) //nolint:gosec // path is a controlled config file path, not user input
	if err != nil {
		return
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		log.Printf("[CONFIG] Warning: could not parse %s: %v", path, err)
		return
	}

	if err := json.Unmarshal(standardized, cfg); err != nil {
		log.Printf("[CONFIG] Warning: could not parse %s: %v", path, err)
		return
	}
	log.Printf("[CONFIG] Loaded %s", path)
}

func loadEnv(cfg *Config) {
	if v := os.Getenv("CACHEWIRE_BIND_ADDRESS"); v != "" {
		cfg.BindAddress = v
	}
	if v := os.Getenv("CACHEWIRE_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Port = n
		}
	}
	if v := os.Getenv("CACHEWIRE_ADMIN_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.AdminPort = n
		}
	}
	if v := os.Getenv("CACHEWIRE_CAPACITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Capacity = n
		}
	}
	if v := os.Getenv("CACHEWIRE_POLICY"); v != "" {
		cfg.Policy = v
	}
	if v := os.Getenv("CACHEWIRE_MAX_KEY_LEN"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxKeyLen = n
		}
	}
	if v := os.Getenv("CACHEWIRE_MAX_VAL_LEN"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxValLen = n
		}
	}
	if v := os.Getenv("CACHEWIRE_SHARD_COUNT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.ShardCount = n
		}
	}
	if v := os.Getenv("CACHEWIRE_TELNET_COMPAT"); v == "false" {
		cfg.TelnetCompat = false
	}
	if v := os.Getenv("CACHEWIRE_ADMIN_TOKEN"); v != "" {
		cfg.AdminToken = v
	}
	if v := os.Getenv("CACHEWIRE_CAPACITY_FILE"); v != "" {
		cfg.CapacityFile = v
	}
	if v := os.Getenv("CACHEWIRE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}

// ValidPolicy reports whether name is a recognized replacement policy.
func ValidPolicy(name string) bool {
	switch name {
	case "lru", "clock", "lfu":
		return true
	default:
		return false
	}
}

// Validate checks invariants Load does not enforce on its own (known policy
// name, positive capacity and shard count), returning a descriptive error
// for the first violation found.
func (c *Config) Validate() error {
	if !ValidPolicy(c.Policy) {
		return fmt.Errorf("config: unknown policy %q (want lru, clock, or lfu)", c.Policy)
	}
	if c.Capacity <= 0 {
		return fmt.Errorf("config: capacity must be positive, got %d", c.Capacity)
	}
	if c.ShardCount <= 0 {
		return fmt.Errorf("config: shardCount must be positive, got %d", c.ShardCount)
	}
	return nil
}
