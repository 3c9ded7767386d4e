package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"finledger/internal/config"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("AUTH_DISABLED", "true")

	cfg, err := config.Load("testdata/does-not-exist.env")
	require.NoError(t, err)

	assert.Equal(t, config.DriverMemory, cfg.StoreDriver)
	assert.Equal(t, "8080", cfg.ServerPort)
	assert.True(t, cfg.LeafOnlyPosting)
	assert.False(t, cfg.AllowNegativeStock)
	assert.Equal(t, "USD", cfg.BaseCurrency)

	policy := cfg.Policy()
	assert.True(t, policy.LeafOnlyPosting)
	assert.False(t, policy.AllowNegativeStock)
}

func TestLoad_PostgresNeedsURL(t *testing.T) {
	t.Setenv("STORE_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("AUTH_DISABLED", "true")

	_, err := config.Load("testdata/does-not-exist.env")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

func TestValidateServer_AuthNeedsSecret(t *testing.T) {
	t.Setenv("STORE_DRIVER", "memory")
	t.Setenv("AUTH_DISABLED", "false")
	t.Setenv("JWT_SECRET", "")

	cfg, err := config.Load("testdata/does-not-exist.env")
	require.NoError(t, err, "the CLI runs without a JWT secret")

	err = cfg.ValidateServer()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "JWT_SECRET")

	cfg.AuthDisabled = true
	assert.NoError(t, cfg.ValidateServer())
}

func TestValidate_UnknownDriver(t *testing.T) {
	cfg := &config.Config{StoreDriver: "sqlite", AuthDisabled: true}
	require.Error(t, cfg.Validate())
}

func TestOrigins(t *testing.T) {
	cfg := &config.Config{AllowedOrigins: "http://a.test, http://b.test,,"}
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Origins())
}
