package domain

import (
	"time"
)

// Config represents the main application configuration
type Config struct {
	Server           ServerConfig           `mapstructure:"server"`
	Database         DatabaseConfig         `mapstructure:"database"`
	Ontology         OntologyConfig         `mapstructure:"ontology"`
	Curation         CurationConfig         `mapstructure:"curation"`
	VariantValidator VariantValidatorConfig `mapstructure:"variant_validator"`
	Logging          LoggingConfig          `mapstructure:"logging"`
	MCP              MCPConfig              `mapstructure:"mcp"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host          string        `mapstructure:"host"`
	Port          int           `mapstructure:"port"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	IdleTimeout   time.Duration `mapstructure:"idle_timeout"`
	EnableMetrics bool          `mapstructure:"enable_metrics"`
}

// DatabaseConfig represents cohort storage configuration. Driver is "sqlite"
// or "postgres".
type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"`
	SQLitePath      string        `mapstructure:"sqlite_path"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsPath  string        `mapstructure:"migrations_path"`
}

// OntologyConfig points at the HPO release used for validation.
type OntologyConfig struct {
	OBOPath   string `mapstructure:"obo_path"`
	CacheSize int    `mapstructure:"cache_size"`
}

// CurationConfig tunes the annotation engine.
type CurationConfig struct {
	Workers      int    `mapstructure:"workers"`
	AutoSanitize bool   `mapstructure:"auto_sanitize"`
	ORCID        string `mapstructure:"orcid"`
}

// VariantValidatorConfig represents VariantValidator API configuration
type VariantValidatorConfig struct {
	BaseURL        string        `mapstructure:"base_url"`
	GenomeAssembly string        `mapstructure:"genome_assembly"`
	Timeout        time.Duration `mapstructure:"timeout"`
	RateLimit      int           `mapstructure:"rate_limit"`
	CacheSize      int           `mapstructure:"cache_size"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// MCPConfig represents MCP server configuration
type MCPConfig struct {
	ServerName     string        `mapstructure:"server_name"`
	ServerVersion  string        `mapstructure:"server_version"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}
