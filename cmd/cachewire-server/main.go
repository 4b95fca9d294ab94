// Command cachewire-server runs the cache TCP listener and its admin HTTP
// API side by side, sharing one metrics collector and one (optionally
// sharded) cache engine.
//
// Configuration is layered: defaults → cachewire.json (JSON-with-comments) →
// environment variables → CLI flags (flags win).
//
// Usage:
//
//	# Defaults
//	./cachewire-server
//
//	# Custom ports and policy
//	./cachewire-server --port 4321 --admin-port 4322 --policy clock
//
//	# Behind an admin token
//	./cachewire-server --admin-token s3cret
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	flag "github.com/spf13/pflag"

	"github.com/cachewire/cachewire/internal/admin"
	"github.com/cachewire/cachewire/internal/cache"
	"github.com/cachewire/cachewire/internal/config"
	"github.com/cachewire/cachewire/internal/logger"
	"github.com/cachewire/cachewire/internal/metrics"
	"github.com/cachewire/cachewire/internal/server"
)

func main() {
	cfg := config.Load()
	applyFlags(cfg)

	m := metrics.New()
	log := logger.New("CACHEWIRE", cfg.LogLevel).WithCounters(logger.Counters{
		Warnings: &m.LogWarnings,
		Errors:   &m.LogErrors,
	})

	if err := cfg.Validate(); err != nil {
		log.Fatal("config", logger.F("err", err))
	}

	if capacity, ok := admin.LoadPersistedCapacity(cfg.CapacityFile); ok {
		log.Info("startup", logger.F("restored_capacity_bytes", capacity))
		cfg.Capacity = capacity
	}

	printBanner(cfg)

	if _, err := newPolicy(cfg.Policy); err != nil {
		log.Fatal("startup", logger.F("err", err))
	}

	shard := server.NewShard(cfg.ShardCount, func() *cache.Engine {
		policy, _ := newPolicy(cfg.Policy) // one policy per shard; name checked above
		return cache.NewEngine(cache.NewHashStorage(), policy, cfg.Capacity)
	})

	addr := fmt.Sprintf("%s:%d", cfg.BindAddress, cfg.Port)
	cacheServer := server.New(addr, shard, m, cfg.MaxKeyLen, cfg.MaxValLen, cfg.TelnetCompat, cfg.LogLevel)

	adminServer := admin.New(cfg, cacheServer.AdminEngine(), m)
	go func() {
		if err := adminServer.ListenAndServe(); err != nil {
			log.Fatal("admin", logger.F("err", err))
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-quit
		log.Info("shutdown")
		cancel()
		time.AfterFunc(15*time.Second, func() {
			log.Fatal("shutdown", logger.F("reason", "timed out waiting for graceful exit"))
		})
	}()

	if err := cacheServer.ListenAndServe(ctx); err != nil {
		log.Fatal("fatal", logger.F("err", err))
	}
}

// newPolicy builds the replacement policy named by SPEC_FULL.md's
// configuration surface. cfg.Validate rejects unknown names before this
// runs, so the default case is unreachable in practice.
func newPolicy(name string) (cache.Policy, error) {
	switch name {
	case "lru":
		return cache.NewLRU(), nil
	case "clock":
		return cache.NewClock(), nil
	case "lfu":
		return cache.NewLFU(), nil
	default:
		return nil, fmt.Errorf("unknown policy %q", name)
	}
}

// applyFlags overlays CLI flags onto cfg, the last and highest-priority
// layer in the documented precedence.
func applyFlags(cfg *config.Config) {
	bindAddress := flag.String("bind-address", cfg.BindAddress, "address to listen on")
	port := flag.Int("port", cfg.Port, "cache protocol port")
	adminPort := flag.Int("admin-port", cfg.AdminPort, "admin HTTP API port")
	capacity := flag.Int("capacity", cfg.Capacity, "cache capacity in bytes")
	policy := flag.String("policy", cfg.Policy, "replacement policy: lru, clock, or lfu")
	maxKeyLen := flag.Int("max-key-len", cfg.MaxKeyLen, "maximum accepted key length")
	maxValLen := flag.Int("max-val-len", cfg.MaxValLen, "maximum accepted value length")
	shardCount := flag.Int("shard-count", cfg.ShardCount, "number of keyspace shards")
	telnetCompat := flag.Bool("telnet-compat", cfg.TelnetCompat, "accept ad-hoc text commands alongside the binary protocol")
	adminToken := flag.String("admin-token", cfg.AdminToken, "bearer token required by the admin API (empty disables auth)")
	capacityFile := flag.String("capacity-file", cfg.CapacityFile, "path used to persist runtime capacity overrides")
	logLevel := flag.String("log-level", cfg.LogLevel, "log verbosity")
	flag.Parse()

	cfg.BindAddress = *bindAddress
	cfg.Port = *port
	cfg.AdminPort = *adminPort
	cfg.Capacity = *capacity
	cfg.Policy = *policy
	cfg.MaxKeyLen = *maxKeyLen
	cfg.MaxValLen = *maxValLen
	cfg.ShardCount = *shardCount
	cfg.TelnetCompat = *telnetCompat
	cfg.AdminToken = *adminToken
	cfg.CapacityFile = *capacityFile
	cfg.LogLevel = *logLevel
}

func printBanner(cfg *config.Config) {
	fmt.Printf(`
╔══════════════════════════════════════════════════════╗
║              cachewire cache server                  ║
╚══════════════════════════════════════════════════════╝
  Cache port      : %d
  Admin port      : %d
  Policy          : %s
  Capacity        : %d bytes
  Shards          : %d
  Telnet compat   : %v

  Check status:
    curl http://%s:%d/status
`, cfg.Port, cfg.AdminPort, cfg.Policy, cfg.Capacity, cfg.ShardCount, cfg.TelnetCompat,
		cfg.BindAddress, cfg.AdminPort)
}
