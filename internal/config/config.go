// Package config loads the agents-api configuration from defaults, an
// optional YAML file, and AGENTS_* environment overrides, in that order.
package config

import (
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Config is the unified configuration for the agents-api process.
type Config struct {
	Server      ServerConfig      `yaml:"server"`
	ManageStore ManageStoreConfig `yaml:"manage_store"`
	RunStore    RunStoreConfig    `yaml:"run_store"`
	Auth        AuthConfig        `yaml:"auth"`
	Logging     LoggingConfig     `yaml:"logging"`
}

// ServerConfig controls the HTTP listener.
type ServerConfig struct {
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	MetricsPort int    `yaml:"metrics_port"`
}

// ManageStoreConfig points at the versioned (Dolt) manage store. An empty
// Host disables the connection pool entirely; the API then runs in degraded
// mode against the embedded fallback store with no branch isolation.
type ManageStoreConfig struct {
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	User          string `yaml:"user"`
	Password      string `yaml:"password"`
	Database      string `yaml:"database"`
	DefaultBranch string `yaml:"default_branch"`
	PoolSize      int    `yaml:"pool_size"`
}

// Enabled reports whether a pooled Dolt connection is configured.
func (c ManageStoreConfig) Enabled() bool {
	return strings.TrimSpace(c.Host) != ""
}

// DSN builds the go-sql-driver connection string for the Dolt sql-server.
func (c ManageStoreConfig) DSN() string {
	auth := c.User
	if c.Password != "" {
		auth = c.User + ":" + c.Password
	}
	return fmt.Sprintf("%s@tcp(%s:%d)/%s?parseTime=true&interpolateParams=true",
		auth, c.Host, c.Port, c.Database)
}

// RunStoreConfig points at the SQLite execution-history store.
// RetentionDays of zero disables pruning.
type RunStoreConfig struct {
	Path          string `yaml:"path"`
	RetentionDays int    `yaml:"retention_days"`
}

// AuthConfig controls API-key authentication. APIKeyHash is a bcrypt hash of
// the accepted key; when Disabled is set all requests are accepted and
// identity comes solely from the gateway headers.
type AuthConfig struct {
	Disabled   bool   `yaml:"disabled"`
	APIKeyHash string `yaml:"api_key_hash"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the baseline configuration before file/env overrides.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        3002,
			MetricsPort: 9091,
		},
		ManageStore: ManageStoreConfig{
			Port:          3306,
			User:          "root",
			Database:      "inkeep_manage",
			DefaultBranch: "main",
			PoolSize:      10,
		},
		RunStore: RunStoreConfig{
			Path:          "./data/run.db",
			RetentionDays: 90,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

// Validate checks the final configuration for consistency.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.ManageStore.Enabled() {
		if c.ManageStore.Port <= 0 || c.ManageStore.Port > 65535 {
			return fmt.Errorf("invalid manage store port %d", c.ManageStore.Port)
		}
		if strings.TrimSpace(c.ManageStore.Database) == "" {
			return fmt.Errorf("manage store database name is required")
		}
		if c.ManageStore.PoolSize <= 0 {
			return fmt.Errorf("manage store pool size must be positive, got %d", c.ManageStore.PoolSize)
		}
		if strings.TrimSpace(c.ManageStore.DefaultBranch) == "" {
			return fmt.Errorf("manage store default branch is required")
		}
	}
	if strings.TrimSpace(c.RunStore.Path) == "" {
		return fmt.Errorf("run store path is required")
	}
	if c.RunStore.RetentionDays < 0 {
		return fmt.Errorf("run store retention days cannot be negative")
	}
	if !c.Auth.Disabled && c.Auth.APIKeyHash == "" {
		return fmt.Errorf("auth is enabled but no API key hash is configured")
	}
	if c.Auth.APIKeyHash != "" && !IsBcryptHash(c.Auth.APIKeyHash) {
		return fmt.Errorf("api_key_hash does not look like a bcrypt hash")
	}
	return nil
}

// IsBcryptHash checks whether a string looks like a bcrypt hash.
func IsBcryptHash(s string) bool {
	return strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$")
}

// CheckAPIKey compares a presented API key against the configured hash.
func (c AuthConfig) CheckAPIKey(key string) bool {
	if c.Disabled {
		return true
	}
	if c.APIKeyHash == "" || key == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(c.APIKeyHash), []byte(key)) == nil
}
