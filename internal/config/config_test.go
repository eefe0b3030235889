package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("COUNTER_BACKEND", "")
	t.Setenv("COUNTER_TIMEOUT", "")

	c, err := Load("test", nil)
	require.NoError(t, err)
	assert.Equal(t, ":8080", c.Addr)
	assert.Equal(t, BackendDatastore, c.Backend)
	assert.Equal(t, SecretSourceSecretManager, c.SecretSource)
	assert.Equal(t, "Counter", c.Kind)
	assert.Equal(t, 5*time.Second, c.Timeout)
	assert.Equal(t, 16, c.MaxAttempts)
	assert.Empty(t, c.AllowedOrigins())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("PROJECT_ID", "my-project")
	t.Setenv("COUNTER_BACKEND", "redis")
	t.Setenv("COUNTER_SECRET_NAME", "RedisConnectionString")
	t.Setenv("COUNTER_TIMEOUT", "750ms")
	t.Setenv("COUNTER_MAX_ATTEMPTS", "9")

	c, err := Load("test", nil)
	require.NoError(t, err)
	assert.Equal(t, ":9000", c.Addr)
	assert.Equal(t, "my-project", c.ProjectID)
	assert.Equal(t, BackendRedis, c.Backend)
	assert.Equal(t, "RedisConnectionString", c.SecretName)
	assert.Equal(t, 750*time.Millisecond, c.Timeout)
	assert.Equal(t, 9, c.MaxAttempts)
}

func TestFlagsOverrideEnv(t *testing.T) {
	t.Setenv("COUNTER_BACKEND", "redis")

	c, err := Load("test", []string{"-backend", "memory", "-addr", ":1234"})
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, c.Backend)
	assert.Equal(t, ":1234", c.Addr)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{name: "backend", args: []string{"-backend", "cosmos"}},
		{name: "secret source", args: []string{"-secret-source", "vault"}},
		{name: "attempts", args: []string{"-max-attempts", "0"}},
		{name: "negative timeout", args: []string{"-timeout", "-1s"}},
		{name: "unknown flag", args: []string{"-nope"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load("test", tt.args)
			assert.Error(t, err)
		})
	}
}

func TestZeroTimeoutAccepted(t *testing.T) {
	c, err := Load("test", []string{"-timeout", "0"})
	require.NoError(t, err)
	assert.Zero(t, c.Timeout)
}

func TestAllowedOrigins(t *testing.T) {
	t.Setenv("COUNTER_ALLOW_ORIGIN", "https://www.example.com, https://example.github.io,")

	c, err := Load("test", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://www.example.com", "https://example.github.io"}, c.AllowedOrigins())
}
