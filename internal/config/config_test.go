package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_DSN", "postgres://localhost/orderflow")
	t.Setenv("JWT_SECRET", "secret")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.True(t, cfg.RunMigrations)
	assert.Equal(t, "256", cfg.Payment.CountryCode)
	assert.Equal(t, 12*time.Second, cfg.Payment.Timeout)
	assert.Equal(t, []string{"https://sandbox.momodeveloper.mtn.com"}, cfg.Payment.Hosts)
}

func TestLoad_RequiredVars(t *testing.T) {
	t.Setenv("DATABASE_DSN", "")
	t.Setenv("JWT_SECRET", "secret")
	_, err := Load()
	require.Error(t, err)

	t.Setenv("DATABASE_DSN", "postgres://localhost/orderflow")
	t.Setenv("JWT_SECRET", "")
	_, err = Load()
	require.Error(t, err)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATABASE_DSN", "postgres://localhost/orderflow")
	t.Setenv("JWT_SECRET", "secret")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("RUN_MIGRATIONS", "false")
	t.Setenv("PAYMENT_TIMEOUT", "30s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.False(t, cfg.RunMigrations)
	assert.Equal(t, 30*time.Second, cfg.Payment.Timeout)
}

func TestSplitHosts(t *testing.T) {
	hosts := splitHosts(" https://primary.example.com/ , https://backup.example.com ,, ")
	assert.Equal(t, []string{"https://primary.example.com", "https://backup.example.com"}, hosts)
}
