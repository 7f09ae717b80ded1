package config

import (
    "os"
    "path/filepath"
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
    "github.com/stretchr/testify/require"
)

func TestDefaultsAreValid(t *testing.T) {
    cfg := Default()
    require.NoError(t, cfg.Validate())
    assert.Equal(t, ":8080", cfg.Addr())
    assert.Equal(t, 24*time.Hour, cfg.Reminders.After)
    assert.Equal(t, time.Hour, cfg.Reminders.Interval)
}

func TestLoadFileThenEnv(t *testing.T) {
    dir := t.TempDir()
    path := filepath.Join(dir, "supplyroute.yaml")
    body := "port: \"9000\"\nredisUrl: redis://file:6379/0\nrate:\n  rps: 2\n  burst: 4\nreminders:\n  after: 12h\n  interval: 30m\n"
    require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

    t.Setenv("CONFIG_FILE", path)
    t.Setenv("REDIS_URL", "redis://env:6379/1")
    t.Setenv("ALLOW_ORIGINS", "http://a.test, http://b.test")
    t.Setenv("DB_MIGRATE", "false")

    cfg, err := Load()
    require.NoError(t, err)
    assert.Equal(t, "9000", cfg.Port)
    assert.Equal(t, "redis://env:6379/1", cfg.RedisURL)
    assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.AllowOrigins)
    assert.False(t, cfg.DBMigrate)
    assert.Equal(t, 2.0, cfg.Rate.RPS)
    assert.Equal(t, 12*time.Hour, cfg.Reminders.After)
    assert.Equal(t, 30*time.Minute, cfg.Reminders.Interval)
}

func TestEnvOverrides(t *testing.T) {
    env := map[string]string{
        "REMINDER_AFTER_HOURS": "48",
        "REMINDER_INTERVAL":    "15m",
        "WEBHOOK_MAX_ATTEMPTS": "3",
        "AUTH_MODE":            " HMAC ",
        "AUTH_HMAC_SECRET":     "s3cret",
    }
    cfg := Default()
    require.NoError(t, cfg.applyEnv(func(k string) (string, bool) { v, ok := env[k]; return v, ok }))
    require.NoError(t, cfg.Validate())
    assert.Equal(t, 48*time.Hour, cfg.Reminders.After)
    assert.Equal(t, 15*time.Minute, cfg.Reminders.Interval)
    assert.Equal(t, 3, cfg.Webhooks.MaxAttempts)
    assert.Equal(t, "hmac", cfg.Auth.Mode)
}

func TestInvalidValues(t *testing.T) {
    cfg := Default()
    err := cfg.applyEnv(func(k string) (string, bool) {
        if k == "RATE_RPS" { return "fast", true }
        return "", false
    })
    require.Error(t, err)

    cfg = Default()
    cfg.Auth.Mode = "hmac"
    require.Error(t, cfg.Validate())

    cfg = Default()
    cfg.Auth.Mode = "jwks"
    require.Error(t, cfg.Validate())
}
