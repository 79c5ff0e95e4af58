package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func envOf(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func baseEnv() map[string]string {
	return map[string]string{
		"DATABASE_URL":   "postgres://localhost/pong?sslmode=disable",
		"JWT_SECRET_KEY": "secret",
	}
}

func TestFromEnv_Defaults(t *testing.T) {
	cfg, err := FromEnv(envOf(baseEnv()))

	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.ServerPort)
	assert.Equal(t, 24*time.Hour, cfg.JWTTTL)
	assert.Equal(t, 24*time.Hour, cfg.StaleRoomAfter)
	assert.Equal(t, 10*time.Minute, cfg.StaleRoomCheckInterval)
	assert.Equal(t, []string{"*"}, cfg.CORSAllowedOrigins)
	assert.False(t, cfg.ArchiveEnabled())
}

func TestFromEnv_Overrides(t *testing.T) {
	env := baseEnv()
	env["SERVER_PORT"] = "9000"
	env["JWT_TTL"] = "1h"
	env["STALE_ROOM_AFTER"] = "0"
	env["CORS_ALLOWED_ORIGINS"] = "https://a.example, https://b.example"
	env["R2_ACCOUNT_ID"] = "acc"
	env["R2_ACCESS_KEY_ID"] = "key"
	env["R2_SECRET_ACCESS_KEY"] = "secret"
	env["R2_BUCKET_NAME"] = "brackets"

	cfg, err := FromEnv(envOf(env))

	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.ServerPort)
	assert.Equal(t, time.Hour, cfg.JWTTTL)
	assert.Zero(t, cfg.StaleRoomAfter)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.CORSAllowedOrigins)
	assert.True(t, cfg.ArchiveEnabled())
}

func TestFromEnv_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "missing database", key: "DATABASE_URL", val: ""},
		{name: "missing secret", key: "JWT_SECRET_KEY", val: ""},
		{name: "port not a number", key: "SERVER_PORT", val: "http"},
		{name: "port out of range", key: "SERVER_PORT", val: "70000"},
		{name: "bad ttl", key: "JWT_TTL", val: "soon"},
		{name: "negative ttl", key: "JWT_TTL", val: "-1h"},
		{name: "partial r2", key: "R2_ACCOUNT_ID", val: "acc"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := baseEnv()
			env[tt.key] = tt.val

			_, err := FromEnv(envOf(env))

			assert.Error(t, err)
		})
	}
}
