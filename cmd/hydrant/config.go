package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config represents the Hydrant CLI configuration
type Config struct {
	LocatorPrefix string       `mapstructure:"locator_prefix"`
	Server        ServerConfig `mapstructure:"server"`
	Store         StoreConfig  `mapstructure:"store"`
	Redis         RedisConfig  `mapstructure:"redis"`
}

// ServerConfig represents the serve command configuration
type ServerConfig struct {
	Addr          string        `mapstructure:"addr"`
	JWTSecret     string        `mapstructure:"jwt_secret"`
	TokenTTL      time.Duration `mapstructure:"token_ttl"`
	AdminEmail    string        `mapstructure:"admin_email"`
	AdminPassword string        `mapstructure:"admin_password"`
}

// StoreConfig selects and configures the storage backend
type StoreConfig struct {
	// Backend is one of memory, sql, redis
	Backend string `mapstructure:"backend"`
	// Driver is the database/sql driver for the sql backend:
	// sqlite3, pgx, or postgres
	Driver string `mapstructure:"driver"`
	// URL is the DSN handed to the driver
	URL string `mapstructure:"url"`
}

// RedisConfig represents redis backend configuration
type RedisConfig struct {
	Addr      string `mapstructure:"addr"`
	Password  string `mapstructure:"password"`
	DB        int    `mapstructure:"db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// Load loads the configuration from hydrant.yml or hydrant.yaml
func Load() (*Config, error) {
	v := viper.New()

	// Set defaults
	v.SetDefault("locator_prefix", "/api")
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.token_ttl", "24h")
	v.SetDefault("server.admin_email", "admin@example.com")
	v.SetDefault("store.backend", "memory")
	v.SetDefault("store.driver", "sqlite3")
	v.SetDefault("store.url", ":memory:")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.key_prefix", "hydrant:record:")

	// Set config name and paths
	v.SetConfigName("hydrant")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Enable environment variable support
	v.AutomaticEnv()

	// Read config file if it exists
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found - use defaults
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// Validate configuration
	if err := validateConfig(&config); err != nil {
		return nil, err
	}

	return &config, nil
}

// GetDatabaseURL returns the database URL from the environment or config
func GetDatabaseURL(cfg *Config) string {
	// First check environment variable
	if url := os.Getenv("DATABASE_URL"); url != "" {
		return url
	}

	return cfg.Store.URL
}

// validateConfig validates the configuration
func validateConfig(cfg *Config) error {
	switch cfg.Store.Backend {
	case "memory", "sql", "redis":
	default:
		return fmt.Errorf("store.backend must be memory, sql, or redis, got: %s", cfg.Store.Backend)
	}
	if cfg.Store.Backend == "sql" {
		switch cfg.Store.Driver {
		case "sqlite3", "pgx", "postgres":
		default:
			return fmt.Errorf("store.driver must be sqlite3, pgx, or postgres, got: %s", cfg.Store.Driver)
		}
	}
	if cfg.LocatorPrefix == "" || cfg.LocatorPrefix[0] != '/' {
		return fmt.Errorf("locator_prefix must start with '/', got: %s", cfg.LocatorPrefix)
	}
	if n := len(cfg.LocatorPrefix); n > 1 && cfg.LocatorPrefix[n-1] == '/' {
		return fmt.Errorf("locator_prefix must not end with '/', got: %s", cfg.LocatorPrefix)
	}
	return nil
}
