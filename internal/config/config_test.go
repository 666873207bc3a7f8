package config

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func unsetEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestParse_Defaults(t *testing.T) {
	unsetEnv(t, "APP_ENV", "DB_DRIVER", "ACCESS_TOKEN_TTL", "VERIFICATION_CODE_TTL",
		"VERIFICATION_CONSUME_GRACE", "VERIFICATION_CODE_LENGTH", "CLIENT_SECRET_LENGTH", "JWT_SECRET")

	cfg, err := Parse()
	require.NoError(t, err)

	assert.Equal(t, "development", cfg.Env)
	assert.Equal(t, "sqlite", cfg.DBDriver)
	assert.Equal(t, 24*time.Hour, cfg.AccessTokenTTL)
	assert.Equal(t, 5*time.Minute, cfg.VerificationCodeTTL)
	assert.Equal(t, time.Second, cfg.VerificationGrace)
	assert.Equal(t, 5, cfg.VerificationCodeLength)
	assert.Equal(t, 20, cfg.ClientSecretLength)
	assert.False(t, cfg.Production())
	assert.NotEmpty(t, cfg.SigningKey())
}

func TestParse_Overrides(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("JWT_SECRET", "s3cret")
	t.Setenv("ACCESS_TOKEN_TTL", "2h")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")

	cfg, err := Parse()
	require.NoError(t, err)

	assert.True(t, cfg.Production())
	assert.Equal(t, 2*time.Hour, cfg.AccessTokenTTL)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, []byte("s3cret"), cfg.SigningKey())
}

func TestParse_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{"production without secret", map[string]string{"APP_ENV": "production", "JWT_SECRET": ""}},
		{"postgres without url", map[string]string{"DB_DRIVER": "postgres", "DATABASE_URL": ""}},
		{"unknown driver", map[string]string{"DB_DRIVER": "mongo"}},
		{"short codes", map[string]string{"VERIFICATION_CODE_LENGTH": "2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Parse()
			require.Error(t, err)
		})
	}
}

func TestApplySecretPayload(t *testing.T) {
	t.Setenv("AUTH_CENTER_EXISTING", "keep")
	unsetEnv(t, "AUTH_CENTER_FRESH")

	err := applySecretPayload(`{"AUTH_CENTER_EXISTING":"replace","AUTH_CENTER_FRESH":"value","AUTH_CENTER_NUM":3}`, false)
	require.NoError(t, err)
	t.Cleanup(func() { os.Unsetenv("AUTH_CENTER_NUM") })

	assert.Equal(t, "keep", os.Getenv("AUTH_CENTER_EXISTING"))
	assert.Equal(t, "value", os.Getenv("AUTH_CENTER_FRESH"))
	assert.Equal(t, "3", os.Getenv("AUTH_CENTER_NUM"))

	require.Error(t, applySecretPayload("not json", false))
}
