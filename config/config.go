package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server       ServerConfig
	Store        StoreConfig
	Catalog      CatalogConfig
	AI           AIConfig
	Sync         SyncConfig
	Verification VerificationConfig
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	Port           string   `mapstructure:"port"`
	Environment    string   `mapstructure:"environment"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// StoreConfig holds result store configuration
type StoreConfig struct {
	Path string `mapstructure:"path"`
}

// CatalogConfig holds catalog service configuration
type CatalogConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// AIConfig holds AI generation backend configuration
type AIConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	APIKey            string        `mapstructure:"api_key"`
	Timeout           time.Duration `mapstructure:"timeout"`
	RequestsPerMinute int           `mapstructure:"requests_per_minute"`
	MaxConcurrent     int           `mapstructure:"max_concurrent"`
}

// SyncConfig holds remote sync configuration
type SyncConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	APIKey       string        `mapstructure:"api_key"`
	Timeout      time.Duration `mapstructure:"timeout"`
	RequestDelay time.Duration `mapstructure:"request_delay"`
}

// VerificationConfig holds orchestrator tuning
type VerificationConfig struct {
	BatchSize       int           `mapstructure:"batch_size"`
	PriorityMarkets []string      `mapstructure:"priority_markets"`
	RestrictedField string        `mapstructure:"restricted_field"`
	SchemaCacheTTL  time.Duration `mapstructure:"schema_cache_ttl"`
}

// Load loads configuration from environment variables and config files
func Load() (*Config, error) {
	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/listing-verifier/")

	// Environment variable settings
	v.SetEnvPrefix("LISTINGAI")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Set default values
	setDefaults(v)

	// Read config file (optional - will use env vars if file doesn't exist)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
		// Config file not found; using environment variables and defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Validate configuration
	if err := validate(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.allowed_origins", []string{"*"})

	// Store defaults
	v.SetDefault("store.path", "data/verification.db")

	// Catalog defaults
	v.SetDefault("catalog.base_url", "https://catalog.example.com/api")
	v.SetDefault("catalog.api_key", "")
	v.SetDefault("catalog.timeout", "30s")

	// AI backend defaults
	v.SetDefault("ai.base_url", "https://generation.example.com/api")
	v.SetDefault("ai.api_key", "")
	v.SetDefault("ai.timeout", "120s")
	v.SetDefault("ai.requests_per_minute", 20)
	v.SetDefault("ai.max_concurrent", 1)

	// Sync defaults
	v.SetDefault("sync.base_url", "https://sync.example.com/api")
	v.SetDefault("sync.api_key", "")
	v.SetDefault("sync.timeout", "30s")
	v.SetDefault("sync.request_delay", "500ms")

	// Verification defaults
	v.SetDefault("verification.batch_size", 3)
	v.SetDefault("verification.priority_markets", []string{"US", "UK", "DE"})
	v.SetDefault("verification.restricted_field", "marketplace_id")
	v.SetDefault("verification.schema_cache_ttl", "1h")
}

// validate validates the configuration
func validate(config *Config) error {
	if config.AI.APIKey == "" {
		return fmt.Errorf("AI backend API key is required (set LISTINGAI_AI_API_KEY)")
	}

	if config.Store.Path == "" {
		return fmt.Errorf("store path must not be empty")
	}

	if config.Verification.BatchSize < 1 {
		return fmt.Errorf("verification batch size must be at least 1, got: %d", config.Verification.BatchSize)
	}

	if config.AI.MaxConcurrent < 1 {
		return fmt.Errorf("ai.max_concurrent must be at least 1, got: %d", config.AI.MaxConcurrent)
	}

	return nil
}
