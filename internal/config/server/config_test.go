package server

import (
	"testing"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadServerConfig_Defaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	cfg, err := LoadServerConfig()
	require.NoError(t, err)
	assert.Equal(t, GetServerDefault(), *cfg)
}

func TestLoadServerConfig_Overrides(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	viper.Set("metadata.type", "postgres")
	viper.Set("metadata.postgres.dsn", "host=localhost dbname=filters")
	viper.Set("http.prefix", "/backoffice")
	viper.Set("filters.demo", true)

	cfg, err := LoadServerConfig()
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Metadata.Type)
	assert.Equal(t, "/backoffice", cfg.HTTP.Prefix)
	assert.True(t, cfg.Filters.Demo)
	assert.Equal(t, 100, cfg.Filters.PageSize)
}

func TestMetadataServerConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     MetadataServerConfig
		wantErr bool
	}{
		{name: "sqlite", cfg: MetadataServerConfig{Type: "sqlite", SQLite: MetadataSQLiteConfig{Path: "filters.db"}}},
		{name: "sqlite without path", cfg: MetadataServerConfig{Type: "sqlite"}, wantErr: true},
		{name: "postgres without dsn", cfg: MetadataServerConfig{Type: "postgres"}, wantErr: true},
		{name: "unsupported", cfg: MetadataServerConfig{Type: "mysql"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
