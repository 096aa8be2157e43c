package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config carries all server knobs. Every field has a working default so
// the server runs with no config file at all.
type Config struct {
	HTTPAddr  string `yaml:"http_addr"`
	MySQLDSN  string `yaml:"mysql_dsn"`
	RedisAddr string `yaml:"redis_addr"`

	ReservationTTLMinutes int `yaml:"reservation_ttl_minutes"`
	LowStockThreshold     int `yaml:"low_stock_threshold"`
	SweepIntervalMinutes  int `yaml:"sweep_interval_minutes"`
}

func Default() Config {
	return Config{
		HTTPAddr:              ":8080",
		ReservationTTLMinutes: 15,
		LowStockThreshold:     10,
		SweepIntervalMinutes:  5,
	}
}

// Load reads a YAML config file, then applies environment overrides.
// An empty path skips the file and uses defaults plus environment.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	if addr := os.Getenv("HTTP_ADDR"); addr != "" {
		cfg.HTTPAddr = addr
	}
	if dsn := os.Getenv("MYSQL_DSN"); dsn != "" {
		cfg.MySQLDSN = dsn
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.RedisAddr = addr
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if c.ReservationTTLMinutes <= 0 {
		return fmt.Errorf("reservation_ttl_minutes must be positive, got %d", c.ReservationTTLMinutes)
	}
	if c.LowStockThreshold <= 0 {
		return fmt.Errorf("low_stock_threshold must be positive, got %d", c.LowStockThreshold)
	}
	if c.SweepIntervalMinutes <= 0 {
		return fmt.Errorf("sweep_interval_minutes must be positive, got %d", c.SweepIntervalMinutes)
	}
	return nil
}

func (c Config) ReservationTTL() time.Duration {
	return time.Duration(c.ReservationTTLMinutes) * time.Minute
}

func (c Config) SweepInterval() time.Duration {
	return time.Duration(c.SweepIntervalMinutes) * time.Minute
}
