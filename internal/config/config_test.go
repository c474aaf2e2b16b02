package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("ENVIRONMENT", "dev")
	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsDev())
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 5*60*0+180, int(cfg.HeartbeatDeadline.Seconds()))
	assert.Equal(t, []string{"iowa_business", "iowa_asbestos", "medical_facility"}, cfg.WorkerCapabilities)
}

func TestLoadRequiresPasswordOutsideDev(t *testing.T) {
	t.Setenv("ENVIRONMENT", "prod")
	t.Setenv("DB_PASSWORD", "")
	_, err := Load()
	require.Error(t, err)
}

func TestLoadAllowsPasswordInTest(t *testing.T) {
	t.Setenv("ENVIRONMENT", "test")
	t.Setenv("DB_PASSWORD", "")
	_, err := Load()
	require.NoError(t, err)
}

func TestDSN(t *testing.T) {
	cfg := Config{DBUser: "u", DBPassword: "p", DBHost: "h", DBPort: 5432, DBName: "d"}
	assert.Equal(t, "postgres://u:p@h:5432/d?sslmode=disable", cfg.DSN())
}

func TestGetRetryConfigOverrides(t *testing.T) {
	cfg := Config{RetryMaxRetries: 7}
	rc := cfg.GetRetryConfig()
	assert.Equal(t, 7, rc.MaxRetries)
}

func TestGetCircuitBreakerConfigDefaults(t *testing.T) {
	cfg := Config{}
	cb := cfg.GetCircuitBreakerConfig()
	assert.Equal(t, 5, cb.FailureThreshold)
}
