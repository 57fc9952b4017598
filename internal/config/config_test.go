package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, ":8000", cfg.HTTPAddr)
	assert.Equal(t, "sb-auth-token", cfg.Auth.CookieName)
	assert.True(t, cfg.Auth.CookieSecure)
	assert.Equal(t, 5*time.Second, cfg.GateTimeout)
	assert.False(t, cfg.GateFailClosed)
	assert.Equal(t, "admin", cfg.ProfileDefaultRole)
	assert.Equal(t, int64(5), cfg.LoginMaxAttempts)
	assert.Nil(t, cfg.GateExcludePrefixes)
}

func TestLoad_overrides(t *testing.T) {
	t.Setenv("SITE_URL", "https://fleet.example.com/")
	t.Setenv("GATE_TIMEOUT", "250ms")
	t.Setenv("GATE_FAIL_CLOSED", "true")
	t.Setenv("GATE_EXCLUDE_PREFIXES", "/_next/, /public/ ,")
	t.Setenv("PROFILE_ROLE_CACHE_TTL", "0")
	t.Setenv("AUTH_COOKIE_SECURE", "false")
	t.Setenv("AUTH_REFRESH_MARGIN", "90")
	t.Setenv("REDIS_DB", "not-a-number")
	t.Setenv("APP_ENV", "Development")

	cfg := Load()

	assert.Equal(t, "https://fleet.example.com", cfg.SiteURL)
	assert.Equal(t, 250*time.Millisecond, cfg.GateTimeout)
	assert.True(t, cfg.GateFailClosed)
	assert.Equal(t, []string{"/_next/", "/public/"}, cfg.GateExcludePrefixes)
	assert.Equal(t, time.Duration(0), cfg.ProfileRoleCacheTTL)
	assert.False(t, cfg.Auth.CookieSecure)
	assert.Equal(t, 90*time.Second, cfg.Auth.RefreshMargin)
	assert.Equal(t, 0, cfg.RedisDB)
	assert.True(t, cfg.IsDevelopment())
}
