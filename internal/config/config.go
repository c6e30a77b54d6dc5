// Package config loads the plexfetch configuration from file and
// environment.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Download DownloadConfig `mapstructure:"download"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig identifies the Plex server and how to talk to it.
type ServerConfig struct {
	URL   string `mapstructure:"url"`
	Token string `mapstructure:"token"`
	// ClientIdentifier scopes the server-side download queue; keep it stable
	// across runs to reuse the same queue.
	ClientIdentifier string `mapstructure:"client_identifier"`
	// Timeout for control calls, in seconds. Downloads are never bounded.
	Timeout int `mapstructure:"timeout"`
}

// DownloadConfig controls where downloads and their history end up.
type DownloadConfig struct {
	Directory string `mapstructure:"directory"`
	Database  string `mapstructure:"database"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Path   string `mapstructure:"path"`
}

// Default returns a Config with default values.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			ClientIdentifier: "plexfetch",
			Timeout:          30,
		},
		Download: DownloadConfig{
			Directory: ".",
			Database:  "./data/plexfetch.db",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads configuration from file and environment variables.
// Priority: environment variables > config file > defaults
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.plexfetch")
	}

	v.SetEnvPrefix("PLEXFETCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found, using defaults + env vars
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return cfg, nil
}

// Validate checks that the fields without usable defaults are set.
func (c *Config) Validate() error {
	if c.Server.URL == "" {
		return errors.New("server.url is required (PLEXFETCH_SERVER_URL)")
	}
	if c.Server.Token == "" {
		return errors.New("server.token is required (PLEXFETCH_SERVER_TOKEN)")
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.url", "")
	v.SetDefault("server.token", "")
	v.SetDefault("server.client_identifier", "plexfetch")
	v.SetDefault("server.timeout", 30)

	v.SetDefault("download.directory", ".")
	v.SetDefault("download.database", "./data/plexfetch.db")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.path", "")
}
