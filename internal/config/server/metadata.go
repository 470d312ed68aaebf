package server

import "fmt"

// MetadataServerConfig holds filter store configuration
type MetadataServerConfig struct {
	Type     string                 `mapstructure:"type"      yaml:"type"`
	LogLevel string                 `mapstructure:"log_level" yaml:"log_level"`
	SQLite   MetadataSQLiteConfig   `mapstructure:"sqlite"    yaml:"sqlite"`
	Postgres MetadataPostgresConfig `mapstructure:"postgres"  yaml:"postgres"`
}

// MetadataSQLiteConfig holds SQLite-specific configuration
type MetadataSQLiteConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// MetadataPostgresConfig holds PostgreSQL-specific configuration
type MetadataPostgresConfig struct {
	DSN string `mapstructure:"dsn" yaml:"dsn"`
}

func (c MetadataServerConfig) Validate() error {
	switch c.Type {
	case "sqlite":
		if c.SQLite.Path == "" {
			return fmt.Errorf("metadata.sqlite.path is required")
		}
	case "postgres":
		if c.Postgres.DSN == "" {
			return fmt.Errorf("metadata.postgres.dsn is required")
		}
	default:
		return fmt.Errorf("unsupported metadata type '%s'", c.Type)
	}
	return nil
}
