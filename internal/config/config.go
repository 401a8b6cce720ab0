package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "SHOPSPHERE"

// Storage backends for the client-local profile storage.
const (
	StorageMemory = "memory"
	StorageFile   = "file"
	StorageSQLite = "sqlite"
	StorageRedis  = "redis"
)

type Config struct {
	APIBaseURL          string        `mapstructure:"api_url"`
	Profile             string        `mapstructure:"profile"`
	DataDir             string        `mapstructure:"data_dir"`
	Storage             string        `mapstructure:"storage"`
	StoragePoll         time.Duration `mapstructure:"storage_poll"`
	RedisAddr           string        `mapstructure:"redis_addr"`
	RedisPassword       string        `mapstructure:"redis_password"`
	CatalogCache        string        `mapstructure:"catalog_cache"`
	CatalogTTL          time.Duration `mapstructure:"catalog_ttl"`
	KafkaBrokers        []string      `mapstructure:"kafka_brokers"`
	KafkaTopic          string        `mapstructure:"kafka_topic"`
	RequestTimeout      time.Duration `mapstructure:"request_timeout"`
	BreakerFailures     uint32        `mapstructure:"breaker_failures"`
	BreakerCooldown     time.Duration `mapstructure:"breaker_cooldown"`
	PaymentTimeout      time.Duration `mapstructure:"payment_timeout"`
	SuccessDelay        time.Duration `mapstructure:"success_delay"`
	CheckoutIdleTimeout time.Duration `mapstructure:"checkout_idle_timeout"`
	HTTPPort            string        `mapstructure:"http_port"`
	ShutdownTimeout     time.Duration `mapstructure:"shutdown_timeout"`
	LogLevel            string        `mapstructure:"log_level"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("api_url", "http://localhost:8080/api")
	v.SetDefault("profile", "default")
	v.SetDefault("data_dir", defaultDataDir())
	v.SetDefault("storage", StorageFile)
	v.SetDefault("storage_poll", time.Second)
	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("redis_password", "")
	v.SetDefault("catalog_cache", "memory")
	v.SetDefault("catalog_ttl", 5*time.Minute)
	v.SetDefault("kafka_brokers", []string{})
	v.SetDefault("kafka_topic", "storefront-checkout")
	v.SetDefault("request_timeout", 15*time.Second)
	v.SetDefault("breaker_failures", 5)
	v.SetDefault("breaker_cooldown", 30*time.Second)
	v.SetDefault("payment_timeout", 30*time.Second)
	v.SetDefault("success_delay", 2*time.Second)
	v.SetDefault("checkout_idle_timeout", 15*time.Minute)
	v.SetDefault("http_port", "8090")
	v.SetDefault("shutdown_timeout", 10*time.Second)
	v.SetDefault("log_level", "info")
}

// Load reads defaults, then the optional config file, then SHOPSPHERE_* env vars.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []error
	if c.APIBaseURL == "" {
		errs = append(errs, errors.New("api_url is required"))
	}
	if c.Profile == "" {
		errs = append(errs, errors.New("profile is required"))
	}
	switch c.Storage {
	case StorageMemory, StorageFile, StorageSQLite, StorageRedis:
	default:
		errs = append(errs, fmt.Errorf("unknown storage backend %q", c.Storage))
	}
	switch c.CatalogCache {
	case "none", "memory", "redis":
	default:
		errs = append(errs, fmt.Errorf("unknown catalog cache %q", c.CatalogCache))
	}
	if c.PaymentTimeout <= 0 {
		errs = append(errs, errors.New("payment_timeout must be positive"))
	}
	return errors.Join(errs...)
}

// ProfileDir is the directory holding the profile's local storage.
func (c *Config) ProfileDir() string {
	return filepath.Join(c.DataDir, c.Profile)
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".shopsphere"
	}
	return filepath.Join(home, ".shopsphere")
}
