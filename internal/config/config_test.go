package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEnvHelpers(t *testing.T) {
	t.Setenv("LUMIA_TEST_STRING", "value")
	t.Setenv("LUMIA_TEST_BOOL", "false")
	t.Setenv("LUMIA_TEST_INT", "42")
	t.Setenv("LUMIA_TEST_INT64", "1073741824")
	t.Setenv("LUMIA_TEST_DURATION", "90s")
	t.Setenv("LUMIA_TEST_BAD", "not-a-number")

	assert.Equal(t, "value", envString("LUMIA_TEST_STRING", "default"))
	assert.Equal(t, "default", envString("LUMIA_TEST_MISSING", "default"))

	assert.False(t, envBool("LUMIA_TEST_BOOL", true))
	assert.True(t, envBool("LUMIA_TEST_BAD", true))

	assert.Equal(t, 42, envInt("LUMIA_TEST_INT", 1))
	assert.Equal(t, 1, envInt("LUMIA_TEST_BAD", 1))

	assert.Equal(t, int64(1)<<30, envInt64("LUMIA_TEST_INT64", 0))
	assert.Equal(t, int64(7), envInt64("LUMIA_TEST_BAD", 7))

	assert.Equal(t, 90*time.Second, envDuration("LUMIA_TEST_DURATION", time.Minute))
	assert.Equal(t, time.Minute, envDuration("LUMIA_TEST_BAD", time.Minute))
}

func TestSanitizedDropsSecrets(t *testing.T) {
	cfg := &Config{
		AppName:            "Lumia",
		AppEnv:             "production",
		JWTSecret:          "secret",
		GoogleClientID:     "client-id",
		GoogleClientSecret: "client-secret",
		ResendAPIKey:       "re_key",
		S3Bucket:           "media",
		S3SecretKey:        "s3-secret",
		DBConnection:       "postgres://user:pass@db/lumia",
		RedisURL:           "redis://:pass@redis:6379",
		SentryDSN:          "https://key@sentry.example.com/1",
		RateLimitRequests:  300,
	}

	s := cfg.Sanitized()
	assert.Equal(t, "Lumia", s.AppName)
	assert.Equal(t, "client-id", s.GoogleClientID)
	assert.Equal(t, "media", s.S3Bucket)
	assert.Equal(t, 300, s.RateLimitRequests)
	assert.Empty(t, s.JWTSecret)
	assert.Empty(t, s.GoogleClientSecret)
	assert.Empty(t, s.ResendAPIKey)
	assert.Empty(t, s.S3SecretKey)
	assert.Empty(t, s.DBConnection)
	assert.Empty(t, s.RedisURL)
	assert.Empty(t, s.SentryDSN)
	assert.True(t, s.IsProduction())
}
