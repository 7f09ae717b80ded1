// Package config loads service settings from an optional YAML file and the
// environment. Environment variables win over the file.
package config

import (
    "fmt"
    "os"
    "strconv"
    "strings"
    "time"

    "gopkg.in/yaml.v3"
)

type Config struct {
    Port         string        `yaml:"port"`
    DatabaseURL  string        `yaml:"databaseUrl"`
    DBMigrate    bool          `yaml:"dbMigrate"`
    MigrationDir string        `yaml:"migrationDir"`
    RedisURL     string        `yaml:"redisUrl"`
    AllowOrigins []string      `yaml:"allowOrigins"`
    Rate         RateConfig    `yaml:"rate"`
    Webhooks     WebhookConfig `yaml:"webhooks"`
    Auth         AuthConfig    `yaml:"auth"`
    Reminders    ReminderConfig `yaml:"reminders"`
}

type RateConfig struct {
    RPS   float64 `yaml:"rps"`
    Burst int     `yaml:"burst"`
}

type WebhookConfig struct {
    MaxAttempts int `yaml:"maxAttempts"`
}

type AuthConfig struct {
    Mode        string `yaml:"mode"` // dev, hmac
    HMACSecret  string `yaml:"hmacSecret"`
    TenantClaim string `yaml:"tenantClaim"`
    RoleClaim   string `yaml:"roleClaim"`
}

type ReminderConfig struct {
    After    time.Duration `yaml:"after"`
    Interval time.Duration `yaml:"interval"`
}

func Default() Config {
    return Config{
        Port:         "8080",
        DBMigrate:    true,
        MigrationDir: "db/migrations",
        Rate:         RateConfig{RPS: 10, Burst: 20},
        Webhooks:     WebhookConfig{MaxAttempts: 10},
        Auth:         AuthConfig{Mode: "dev", TenantClaim: "tenant", RoleClaim: "role"},
        Reminders:    ReminderConfig{After: 24 * time.Hour, Interval: time.Hour},
    }
}

// Load reads CONFIG_FILE when set, then applies environment overrides.
func Load() (Config, error) {
    cfg := Default()
    if path := os.Getenv("CONFIG_FILE"); path != "" {
        b, err := os.ReadFile(path)
        if err != nil { return cfg, fmt.Errorf("config: %w", err) }
        if err := yaml.Unmarshal(b, &cfg); err != nil { return cfg, fmt.Errorf("config %s: %w", path, err) }
    }
    if err := cfg.applyEnv(os.LookupEnv); err != nil { return cfg, err }
    return cfg, cfg.Validate()
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
    str := func(k string, dst *string) {
        if v, ok := lookup(k); ok && v != "" { *dst = v }
    }
    str("PORT", &c.Port)
    str("DATABASE_URL", &c.DatabaseURL)
    str("REDIS_URL", &c.RedisURL)
    str("AUTH_HMAC_SECRET", &c.Auth.HMACSecret)
    str("AUTH_TENANT_CLAIM", &c.Auth.TenantClaim)
    str("AUTH_ROLE_CLAIM", &c.Auth.RoleClaim)
    if v, ok := lookup("AUTH_MODE"); ok && v != "" { c.Auth.Mode = strings.ToLower(strings.TrimSpace(v)) }
    if v, ok := lookup("DB_MIGRATE"); ok && v != "" { c.DBMigrate = !strings.EqualFold(v, "false") }
    if v, ok := lookup("ALLOW_ORIGINS"); ok && v != "" {
        c.AllowOrigins = nil
        for _, o := range strings.Split(v, ",") {
            if o = strings.TrimSpace(o); o != "" { c.AllowOrigins = append(c.AllowOrigins, o) }
        }
    }
    if v, ok := lookup("RATE_RPS"); ok && v != "" {
        f, err := strconv.ParseFloat(v, 64)
        if err != nil { return fmt.Errorf("RATE_RPS: %w", err) }
        c.Rate.RPS = f
    }
    if v, ok := lookup("RATE_BURST"); ok && v != "" {
        n, err := strconv.Atoi(v)
        if err != nil { return fmt.Errorf("RATE_BURST: %w", err) }
        c.Rate.Burst = n
    }
    if v, ok := lookup("WEBHOOK_MAX_ATTEMPTS"); ok && v != "" {
        n, err := strconv.Atoi(v)
        if err != nil { return fmt.Errorf("WEBHOOK_MAX_ATTEMPTS: %w", err) }
        c.Webhooks.MaxAttempts = n
    }
    if v, ok := lookup("REMINDER_AFTER_HOURS"); ok && v != "" {
        n, err := strconv.Atoi(v)
        if err != nil { return fmt.Errorf("REMINDER_AFTER_HOURS: %w", err) }
        c.Reminders.After = time.Duration(n) * time.Hour
    }
    if v, ok := lookup("REMINDER_INTERVAL"); ok && v != "" {
        d, err := time.ParseDuration(v)
        if err != nil { return fmt.Errorf("REMINDER_INTERVAL: %w", err) }
        c.Reminders.Interval = d
    }
    return nil
}

func (c Config) Validate() error {
    switch c.Auth.Mode {
    case "dev":
    case "hmac":
        if c.Auth.HMACSecret == "" { return fmt.Errorf("config: AUTH_HMAC_SECRET required for hmac auth") }
    default:
        return fmt.Errorf("config: unsupported auth mode %q", c.Auth.Mode)
    }
    if c.Rate.RPS <= 0 || c.Rate.Burst <= 0 { return fmt.Errorf("config: rate limit must be positive") }
    if c.Webhooks.MaxAttempts <= 0 { return fmt.Errorf("config: webhook max attempts must be positive") }
    if c.Reminders.After <= 0 || c.Reminders.Interval <= 0 { return fmt.Errorf("config: reminder durations must be positive") }
    return nil
}

func (c Config) Addr() string { return ":" + c.Port }
