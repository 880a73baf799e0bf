// Package config loads runtime configuration from a config file and
// environment variables.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	Points  PointsConfig
	Catalog CatalogConfig
}

// ServerConfig holds server-specific configuration.
type ServerConfig struct {
	Port           string
	AllowedOrigins []string
}

// StorageConfig holds persistence configuration.
type StorageConfig struct {
	// SQLitePath is the database file path, or ":memory:".
	SQLitePath string
}

// PointsConfig holds earning-policy configuration.
type PointsConfig struct {
	// DefaultTimezone is the IANA timezone used for requests that don't
	// pass an explicit tz parameter.
	DefaultTimezone string

	// CutoverHour is the local hour at which the earning day rolls over.
	CutoverHour int
}

// CatalogConfig holds shop catalog configuration.
type CatalogConfig struct {
	// Path to a YAML catalog file. Empty uses the built-in catalog.
	Path string
}

// Load loads configuration from config files and environment variables.
func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is fine, environment variables and
		// defaults cover everything.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

func (c *Config) validate() error {
	if _, err := time.LoadLocation(c.Points.DefaultTimezone); err != nil {
		return fmt.Errorf("invalid Points.DefaultTimezone %q: %w", c.Points.DefaultTimezone, err)
	}
	if c.Points.CutoverHour < 0 || c.Points.CutoverHour > 23 {
		return fmt.Errorf("Points.CutoverHour must be 0-23, got %d", c.Points.CutoverHour)
	}
	return nil
}

// DefaultLocation resolves the configured default timezone. Call after
// Load, which validates the name.
func (c *Config) DefaultLocation() *time.Location {
	loc, err := time.LoadLocation(c.Points.DefaultTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// setDefaults sets default values for configuration.
func setDefaults() {
	viper.SetDefault("Server.Port", "8080")
	viper.SetDefault("Server.AllowedOrigins", []string{"*"})
	viper.SetDefault("Storage.SQLitePath", "./data/points.db")
	viper.SetDefault("Points.DefaultTimezone", "UTC")
	viper.SetDefault("Points.CutoverHour", 6)
	viper.SetDefault("Catalog.Path", "")
}
