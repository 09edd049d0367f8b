// Package config provides configuration loading and validation for the
// test-impact-analysis cache and traversal engine.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Sentinel validation errors.
var (
	ErrInvalidL1Capacity     = errors.New("l1 capacity must be positive")
	ErrInvalidTreePoolSize   = errors.New("tree pool capacity must be positive")
	ErrInvalidMaxDepth       = errors.New("traversal max depth must be positive")
	ErrInvalidMaxBreadth     = errors.New("traversal max breadth per level must be positive")
	ErrInvalidMaxVisited     = errors.New("traversal max visited nodes must be positive")
	ErrInvalidBlobShardWidth = errors.New("blob store shard width must be between 1 and 8")
)

// Default configuration values.
const (
	defaultL1Capacity        = 2048
	defaultTreePoolCapacity  = 512
	defaultMaxDepth          = 20
	defaultMaxBreadthPerTier = 50
	defaultMaxVisitedNodes   = 5000
	defaultShardWidth        = 2
)

// Config holds all configuration for the cache and traversal engine.
type Config struct {
	Cache       CacheConfig       `mapstructure:"cache"`
	Compilation CompilationConfig `mapstructure:"compilation"`
	TreePool    TreePoolConfig    `mapstructure:"tree_pool"`
	Traversal   TraversalConfig   `mapstructure:"traversal"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// CacheConfig holds CompressedBlobStore and CallGraphCache settings.
type CacheConfig struct {
	Backend         string        `mapstructure:"backend"`
	Directory       string        `mapstructure:"directory"`
	MaxSize         string        `mapstructure:"max_size"`
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	ShardWidth      int           `mapstructure:"shard_width"`
	WatchForChanges bool          `mapstructure:"watch_for_changes"`
	Enabled         bool          `mapstructure:"enabled"`
}

// CompilationConfig holds CompilationCacheTiers settings.
type CompilationConfig struct {
	L1Capacity      int           `mapstructure:"l1_capacity"`
	L2Enabled       bool          `mapstructure:"l2_enabled"`
	L3ManifestDir   string        `mapstructure:"l3_manifest_dir"`
	PromotionOnHit  bool          `mapstructure:"promotion_on_hit"`
	FactoryTimeout  time.Duration `mapstructure:"factory_timeout"`
	ManifestTTL     time.Duration `mapstructure:"manifest_ttl"`
	SchemaValidated bool          `mapstructure:"schema_validated"`
}

// TreePoolConfig holds SyntaxTreePool settings.
type TreePoolConfig struct {
	ContentCacheCapacity int           `mapstructure:"content_cache_capacity"`
	ReusePoolCapacity    int           `mapstructure:"reuse_pool_capacity"`
	CleanupInterval      time.Duration `mapstructure:"cleanup_interval"`
}

// TraversalConfig holds CallGraphTraversal bounds.
type TraversalConfig struct {
	MaxDepth            int      `mapstructure:"max_depth"`
	MaxBreadthPerTier   int      `mapstructure:"max_breadth_per_tier"`
	MaxVisitedNodes     int      `mapstructure:"max_visited_nodes"`
	FrameworkPrefixes   []string `mapstructure:"framework_prefixes"`
	TestUtilPrefixes    []string `mapstructure:"test_util_prefixes"`
	DataAccessPrefixes  []string `mapstructure:"data_access_prefixes"`
	InfrastructureNames []string `mapstructure:"infrastructure_names"`
	ThirdPartyPrefixes  []string `mapstructure:"third_party_prefixes"`
	TreatInfraAsProd    bool     `mapstructure:"treat_infrastructure_as_production"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// LoadConfig loads configuration from file and environment variables.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	// Set defaults.
	setDefaults(viperCfg)

	// Read config file.
	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName("config")
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("./config")
		viperCfg.AddConfigPath("/etc/testintel")
	}

	// Read environment variables.
	viperCfg.SetEnvPrefix("TESTINTEL")
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var cfg Config

	unmarshalErr := viperCfg.Unmarshal(&cfg)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	validateErr := validateConfig(&cfg)
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values.
func setDefaults(viperCfg *viper.Viper) {
	// Cache defaults.
	viperCfg.SetDefault("cache.enabled", true)
	viperCfg.SetDefault("cache.backend", "local")
	viperCfg.SetDefault("cache.directory", "/tmp/testintel-cache")
	viperCfg.SetDefault("cache.ttl", "720h")
	viperCfg.SetDefault("cache.cleanup_interval", "5m")
	viperCfg.SetDefault("cache.max_size", "100MB")
	viperCfg.SetDefault("cache.shard_width", defaultShardWidth)
	viperCfg.SetDefault("cache.watch_for_changes", true)

	// Compilation cache tier defaults.
	viperCfg.SetDefault("compilation.l1_capacity", defaultL1Capacity)
	viperCfg.SetDefault("compilation.l2_enabled", false)
	viperCfg.SetDefault("compilation.l3_manifest_dir", "/tmp/testintel-cache/manifests")
	viperCfg.SetDefault("compilation.promotion_on_hit", true)
	viperCfg.SetDefault("compilation.factory_timeout", "2m")
	viperCfg.SetDefault("compilation.manifest_ttl", "24h")
	viperCfg.SetDefault("compilation.schema_validated", true)

	// Tree pool defaults.
	viperCfg.SetDefault("tree_pool.content_cache_capacity", defaultTreePoolCapacity)
	viperCfg.SetDefault("tree_pool.reuse_pool_capacity", defaultTreePoolCapacity/4)
	viperCfg.SetDefault("tree_pool.cleanup_interval", "5m")

	// Traversal defaults.
	viperCfg.SetDefault("traversal.max_depth", defaultMaxDepth)
	viperCfg.SetDefault("traversal.max_breadth_per_tier", defaultMaxBreadthPerTier)
	viperCfg.SetDefault("traversal.max_visited_nodes", defaultMaxVisitedNodes)
	viperCfg.SetDefault("traversal.framework_prefixes", []string{"System.", "Microsoft.AspNetCore.", "Microsoft.Extensions."})
	viperCfg.SetDefault("traversal.test_util_prefixes", []string{"Xunit.", "NUnit.", "Moq.", "FluentAssertions."})
	viperCfg.SetDefault("traversal.data_access_prefixes", []string{"System.Data.", "Microsoft.EntityFrameworkCore.", "Dapper."})
	viperCfg.SetDefault("traversal.third_party_prefixes", []string{"AutoMapper.", "Newtonsoft.", "Serilog."})
	viperCfg.SetDefault("traversal.infrastructure_names", []string{"Logger", "Cache", "Config", "Metrics"})
	viperCfg.SetDefault("traversal.treat_infrastructure_as_production", false)

	// Logging defaults.
	viperCfg.SetDefault("logging.level", "info")
	viperCfg.SetDefault("logging.format", "json")
	viperCfg.SetDefault("logging.output", "stdout")
}

// validateConfig validates the configuration.
func validateConfig(cfg *Config) error {
	if cfg.Compilation.L1Capacity <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidL1Capacity, cfg.Compilation.L1Capacity)
	}

	if cfg.TreePool.ContentCacheCapacity <= 0 || cfg.TreePool.ReusePoolCapacity <= 0 {
		return fmt.Errorf("%w: content=%d reuse=%d", ErrInvalidTreePoolSize,
			cfg.TreePool.ContentCacheCapacity, cfg.TreePool.ReusePoolCapacity)
	}

	if cfg.Traversal.MaxDepth <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxDepth, cfg.Traversal.MaxDepth)
	}

	if cfg.Traversal.MaxBreadthPerTier <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxBreadth, cfg.Traversal.MaxBreadthPerTier)
	}

	if cfg.Traversal.MaxVisitedNodes <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxVisited, cfg.Traversal.MaxVisitedNodes)
	}

	if cfg.Cache.ShardWidth < 1 || cfg.Cache.ShardWidth > 8 {
		return fmt.Errorf("%w: %d", ErrInvalidBlobShardWidth, cfg.Cache.ShardWidth)
	}

	return nil
}
