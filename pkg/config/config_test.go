package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDatabaseURL(t *testing.T) {
	d := Database{Host: "db", Port: 5432, User: "surge", Password: "p@ss/word", DBName: "signals", SSLMode: "disable"}
	assert.Equal(t, "postgres://surge:p%40ss%2Fword@db:5432/signals?sslmode=disable", d.URL())

	d.SSLMode = ""
	assert.Equal(t, "postgres://surge:p%40ss%2Fword@db:5432/signals", d.URL())
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("app:\n  name: surge\nredis:\n  host: localhost\n  port: 6379\n"), 0o600))
	t.Setenv("REDIS_HOST", "cache")

	var cfg struct {
		App   App   `mapstructure:"app"`
		Redis Redis `mapstructure:"redis"`
	}
	require.NoError(t, Load(path, &cfg))
	assert.Equal(t, "surge", cfg.App.Name)
	assert.Equal(t, "cache", cfg.Redis.Host)
	assert.Equal(t, 6379, cfg.Redis.Port)
}
