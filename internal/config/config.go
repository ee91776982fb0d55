// Package config loads the curation server configuration with Viper and
// builds the process logger.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"

	"github.com/phetools-curation-server/internal/domain"
)

// Manager loads domain.Config from a config file, PHETOOLS_ environment
// variables and defaults, in decreasing priority: env, file, defaults.
type Manager struct {
	v      *viper.Viper
	path   string
	config *domain.Config
}

// NewManager creates a new configuration manager. An empty path searches
// the default locations for config.yaml.
func NewManager(path string) (*Manager, error) {
	m := &Manager{v: viper.New(), path: path}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

func (m *Manager) loadConfig() error {
	v := m.v
	// SetConfigName clears an explicit config file, so the search paths are
	// only set up without one.
	if m.path != "" {
		v.SetConfigFile(m.path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/phetools-curation-server/")
	}

	v.SetEnvPrefix("PHETOOLS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	m.setDefaults()

	// Only the searched config file is optional.
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || m.path != "" {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &domain.Config{}
	if err := v.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}
	m.config = config
	return nil
}

func (m *Manager) setDefaults() {
	v := m.v
	homeDir, _ := os.UserHomeDir()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.enable_metrics", true)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.sqlite_path", filepath.Join(homeDir, ".phetools", "cohorts.db"))
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.database", "phetools")
	v.SetDefault("database.username", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "5m")
	v.SetDefault("database.migrations_path", "migrations")

	v.SetDefault("ontology.obo_path", "hp.obo")
	v.SetDefault("ontology.cache_size", 4096)

	v.SetDefault("curation.workers", 0)
	v.SetDefault("curation.auto_sanitize", false)
	v.SetDefault("curation.orcid", "")

	v.SetDefault("variant_validator.base_url", "https://rest.variantvalidator.org/")
	v.SetDefault("variant_validator.genome_assembly", "hg38")
	v.SetDefault("variant_validator.timeout", "30s")
	v.SetDefault("variant_validator.rate_limit", 2)
	v.SetDefault("variant_validator.cache_size", 1000)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.output", "stderr")

	v.SetDefault("mcp.server_name", "phetools-curation-server")
	v.SetDefault("mcp.server_version", "1.0.0")
	v.SetDefault("mcp.request_timeout", "60s")
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetDatabaseConfig returns database configuration
func (m *Manager) GetDatabaseConfig() *domain.DatabaseConfig {
	return &m.config.Database
}

// GetServerConfig returns server configuration
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// Reload reloads the configuration
func (m *Manager) Reload() error {
	return m.loadConfig()
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	config := m.config

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}

	switch config.Database.Driver {
	case "sqlite":
		if config.Database.SQLitePath == "" {
			return fmt.Errorf("database sqlite_path is required")
		}
	case "postgres":
		if config.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if config.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
		if config.Database.Username == "" {
			return fmt.Errorf("database username is required")
		}
		if config.Database.Port <= 0 || config.Database.Port > 65535 {
			return fmt.Errorf("invalid database port: %d", config.Database.Port)
		}
	default:
		return fmt.Errorf("invalid database driver: %s", config.Database.Driver)
	}

	if config.Ontology.OBOPath == "" {
		return fmt.Errorf("ontology obo_path is required")
	}
	if config.Curation.Workers < 0 {
		return fmt.Errorf("invalid curation workers: %d", config.Curation.Workers)
	}

	switch strings.ToLower(config.VariantValidator.GenomeAssembly) {
	case "grch38", "hg38":
	default:
		return fmt.Errorf("unsupported genome assembly: %s", config.VariantValidator.GenomeAssembly)
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	return nil
}

// IsProduction returns true if running in production mode
func (m *Manager) IsProduction() bool {
	return strings.ToLower(m.v.GetString("environment")) == "production"
}
