package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ECOLETA_STORE", "")
	t.Setenv("ECOLETA_HTTP_ADDR", "")
	t.Setenv("ECOLETA_ALLOWED_ORIGINS", "")
	t.Setenv("REDIS_DB", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, ":3333", cfg.HTTPAddr)
	assert.Equal(t, "sqlite", cfg.Store)
	assert.Equal(t, defaultAllowedOrigins, cfg.AllowedOrigins)
	assert.Equal(t, 0, cfg.RedisDB)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("ECOLETA_STORE", "Postgres")
	t.Setenv("ECOLETA_ALLOWED_ORIGINS", "https://a.example, https://b.example ,")
	t.Setenv("ECOLETA_PUBLIC_URL", "https://ecoleta.example/")
	t.Setenv("REDIS_DB", "3")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "postgres", cfg.Store)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, "https://ecoleta.example", cfg.PublicURL)
	assert.Equal(t, 3, cfg.RedisDB)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("ECOLETA_STORE", "cassandra")
	_, err := Load()
	assert.Error(t, err)

	t.Setenv("ECOLETA_STORE", "")
	t.Setenv("REDIS_DB", "one")
	_, err = Load()
	assert.Error(t, err)
}
