package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Temporal  TemporalConfig  `mapstructure:"temporal"`
	Log       LogConfig       `mapstructure:"log"`
	Routing   RoutingConfig   `mapstructure:"routing"`
	Explorer  ExplorerConfig  `mapstructure:"explorer"`
}

type ServerConfig struct {
	Port         int `mapstructure:"port"`
	ReadTimeout  int `mapstructure:"read_timeout"`
	WriteTimeout int `mapstructure:"write_timeout"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type ValkeyConfig struct {
	Addr string `mapstructure:"addr"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

type TemporalConfig struct {
	HostPort  string `mapstructure:"host_port"`
	TaskQueue string `mapstructure:"task_queue"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// RoutingConfig points at an OSRM-compatible routing server.
type RoutingConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Timeout           time.Duration `mapstructure:"timeout"`
}

// ExplorerConfig holds the product-tuning constants of an explorer session.
type ExplorerConfig struct {
	NearThresholdMeters     float64       `mapstructure:"near_threshold_meters"`
	MovementThresholdMeters float64       `mapstructure:"movement_threshold_meters"`
	Cooldown                time.Duration `mapstructure:"cooldown"`
	MinLoadingDisplay       time.Duration `mapstructure:"min_loading_display"`
	FixTimeout              time.Duration `mapstructure:"fix_timeout"`
	SessionIdleTTL          time.Duration `mapstructure:"session_idle_ttl"`
	TravelCacheTTL          time.Duration `mapstructure:"travel_cache_ttl"`
	CatalogCacheTTL         time.Duration `mapstructure:"catalog_cache_ttl"`
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "explorer")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "poiexplorer")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("temporal.host_port", "localhost:7233")
	v.SetDefault("temporal.task_queue", "travel-cache-warm")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("routing.base_url", "https://router.project-osrm.org")
	v.SetDefault("routing.requests_per_second", 5.0)
	v.SetDefault("routing.timeout", "10s")
	v.SetDefault("explorer.near_threshold_meters", 2000.0)
	v.SetDefault("explorer.movement_threshold_meters", 50.0)
	v.SetDefault("explorer.cooldown", "30s")
	v.SetDefault("explorer.min_loading_display", "600ms")
	v.SetDefault("explorer.fix_timeout", "15s")
	v.SetDefault("explorer.session_idle_ttl", "30m")
	v.SetDefault("explorer.travel_cache_ttl", "10m")
	v.SetDefault("explorer.catalog_cache_ttl", "5m")

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: EXPLORER_DATABASE_HOST → database.host
	v.SetEnvPrefix("EXPLORER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Database.Host == "" {
		errs = append(errs, "database.host is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
	}
	if c.Database.User == "" {
		errs = append(errs, "database.user is required")
	}
	if c.Database.DBName == "" {
		errs = append(errs, "database.dbname is required")
	}
	if c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required")
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}
	if c.Routing.BaseURL == "" {
		errs = append(errs, "routing.base_url is required")
	}
	if c.Routing.RequestsPerSecond <= 0 {
		errs = append(errs, "routing.requests_per_second must be positive")
	}
	if c.Explorer.NearThresholdMeters <= 0 {
		errs = append(errs, "explorer.near_threshold_meters must be positive")
	}
	if c.Explorer.MovementThresholdMeters <= 0 {
		errs = append(errs, "explorer.movement_threshold_meters must be positive")
	}
	if c.Explorer.Cooldown < 0 {
		errs = append(errs, "explorer.cooldown must not be negative")
	}
	if c.Explorer.MinLoadingDisplay < 0 {
		errs = append(errs, "explorer.min_loading_display must not be negative")
	}
	if c.Explorer.FixTimeout <= 0 {
		errs = append(errs, "explorer.fix_timeout must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
