package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromEnvDefaults(t *testing.T) {
	t.Setenv("STORE_BACKEND", "")
	t.Setenv("RCAFLOW_ENV", "")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, "memory", cfg.Store.Backend)
	assert.Equal(t, "fs", cfg.Storage.Backend)
	assert.Equal(t, "log", cfg.Email.Provider)
	assert.Equal(t, 12*time.Hour, cfg.Auth.TokenTTL)
	assert.Contains(t, cfg.Storage.AllowedContentTypes, "application/pdf")
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.False(t, cfg.RateLimit.Disabled)
	assert.Equal(t, 10, cfg.RateLimit.Login)
	assert.Equal(t, 90*24*time.Hour, cfg.Workflow.EfficacyDelay)
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("TOKEN_TTL", "90m")
	t.Setenv("APP_BASE_URL", "https://rca.example.com/")

	cfg, err := FromEnv()
	require.NoError(t, err)

	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 90*time.Minute, cfg.Auth.TokenTTL)
	assert.Equal(t, "https://rca.example.com", cfg.Email.AppBaseURL)
}

func TestFromEnvRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"bad integer", map[string]string{"BCRYPT_COST": "ten"}, "BCRYPT_COST"},
		{"bad duration", map[string]string{"TOKEN_TTL": "forever"}, "TOKEN_TTL"},
		{"bad boolean", map[string]string{"RATE_LIMIT_DISABLED": "maybe"}, "RATE_LIMIT_DISABLED"},
		{"zero login limit", map[string]string{"RATE_LIMIT_LOGIN": "0"}, "RATE_LIMIT_LOGIN"},
		{"postgres without dsn", map[string]string{"STORE_BACKEND": "postgres", "DATABASE_URL": ""}, "DATABASE_URL"},
		{"unknown store", map[string]string{"STORE_BACKEND": "firestore"}, "STORE_BACKEND"},
		{"resend without key", map[string]string{"EMAIL_PROVIDER": "resend", "RESEND_API_KEY": ""}, "RESEND_API_KEY"},
		{"production with dev key", map[string]string{"RCAFLOW_ENV": "production", "JWT_SIGNING_KEY": ""}, "JWT_SIGNING_KEY"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := FromEnv()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}
