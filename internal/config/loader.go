package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v3"
)

const envPrefix = "AGENTS_"

var defaultConfigPaths = []string{
	"/etc/inkeep/agents.yml",
	"/etc/inkeep/agents.yaml",
	"./agents.yml",
	"./agents.yaml",
}

// Load builds the configuration: defaults, then the first YAML file found
// (or AGENTS_CONFIG if set), then environment overrides, then validation.
func Load() (*Config, error) {
	// Deployment overrides dropped next to the binary
	if err := godotenv.Load(); err == nil {
		log.Info().Msg("Loaded configuration from .env in current directory")
	}

	cfg := Default()

	if err := loadFromFile(cfg); err != nil {
		log.Warn().Err(err).Msg("Failed to load config file, using defaults")
	}

	loadFromEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadFromFile(cfg *Config) error {
	paths := defaultConfigPaths
	if explicit := strings.TrimSpace(os.Getenv(envPrefix + "CONFIG")); explicit != "" {
		paths = []string{explicit}
	}

	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return fmt.Errorf("reading %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parsing %s: %w", path, err)
		}
		log.Info().Str("file", path).Msg("Loaded config file")
		return nil
	}
	return nil
}

func loadFromEnv(cfg *Config) {
	setString(&cfg.Server.Host, "SERVER_HOST")
	setInt(&cfg.Server.Port, "SERVER_PORT")
	setInt(&cfg.Server.MetricsPort, "METRICS_PORT")

	setString(&cfg.ManageStore.Host, "MANAGE_DB_HOST")
	setInt(&cfg.ManageStore.Port, "MANAGE_DB_PORT")
	setString(&cfg.ManageStore.User, "MANAGE_DB_USER")
	setString(&cfg.ManageStore.Password, "MANAGE_DB_PASSWORD")
	setString(&cfg.ManageStore.Database, "MANAGE_DB_NAME")
	setString(&cfg.ManageStore.DefaultBranch, "MANAGE_DB_DEFAULT_BRANCH")
	setInt(&cfg.ManageStore.PoolSize, "MANAGE_DB_POOL_SIZE")

	setString(&cfg.RunStore.Path, "RUN_DB_PATH")
	setInt(&cfg.RunStore.RetentionDays, "RUN_DB_RETENTION_DAYS")

	setBool(&cfg.Auth.Disabled, "AUTH_DISABLED")
	setString(&cfg.Auth.APIKeyHash, "API_KEY_HASH")

	setString(&cfg.Logging.Level, "LOG_LEVEL")
	setString(&cfg.Logging.Format, "LOG_FORMAT")
}

func setString(dst *string, key string) {
	if v, ok := os.LookupEnv(envPrefix + key); ok {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	v, ok := os.LookupEnv(envPrefix + key)
	if !ok {
		return
	}
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		log.Warn().Str("var", envPrefix+key).Str("value", v).Msg("Ignoring non-integer env override")
		return
	}
	*dst = n
}

func setBool(dst *bool, key string) {
	v, ok := os.LookupEnv(envPrefix + key)
	if !ok {
		return
	}
	b, err := strconv.ParseBool(strings.TrimSpace(v))
	if err != nil {
		log.Warn().Str("var", envPrefix+key).Str("value", v).Msg("Ignoring non-boolean env override")
		return
	}
	*dst = b
}
