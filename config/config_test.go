package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadFromPrecedence(t *testing.T) {
	dir := t.TempDir()
	jsonPath := writeFile(t, dir, "config.json", `{
		"app": {"AppPort": "9000", "JWTSecret": "from-json", "AdminUsernames": ["elder"]},
		"database": {"Driver": "postgres", "DBName": "forum"},
		"redis": {"Enabled": true, "RedisPort": 6380},
		"register": {"CooldownSec": 30}
	}`)
	envPath := writeFile(t, dir, ".env", "APP_PORT=9100\nDB_NAME=from-dotenv\n")

	t.Setenv("APP_PORT", "9200")
	t.Setenv("JWT_SECRET", "")
	t.Setenv("REGISTER_CAPTCHA_ENABLED", "true")
	// Registers a restore, then clears the variable so .env can supply it.
	t.Setenv("DB_NAME", "placeholder")
	os.Unsetenv("DB_NAME")

	c, err := LoadFrom(jsonPath, envPath)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if c.AppPort != "9200" {
		t.Fatalf("process env should win, got port %q", c.AppPort)
	}
	if c.DBName != "from-dotenv" {
		t.Fatalf(".env should override json, got db %q", c.DBName)
	}
	if c.DBDriver != "postgres" || !c.RedisEnabled || c.RedisPort != 6380 {
		t.Fatalf("json values lost: %+v", c)
	}
	if c.RegisterCooldownSec != 30 || !c.RegisterCaptchaEnabled {
		t.Fatalf("register settings lost: %+v", c)
	}
	if c.TokenTTLHours != 72 || c.RateLimitPerMinute != 60 {
		t.Fatalf("defaults not applied: %+v", c)
	}
	if !c.IsAdmin("ELDER") || c.IsAdmin("guest") {
		t.Fatalf("admin lookup wrong for %v", c.AdminUsernames)
	}
}

func TestLoadFromRequiresSecret(t *testing.T) {
	t.Setenv("JWT_SECRET", "")
	_, err := LoadFrom(filepath.Join(t.TempDir(), "missing.json"), "")
	if !errors.Is(err, ErrMissingJWTSecret) {
		t.Fatalf("expected ErrMissingJWTSecret, got %v", err)
	}
}

func TestLoadFromRejectsBadValues(t *testing.T) {
	dir := t.TempDir()
	bad := writeFile(t, dir, "config.json", `{"app": `)
	if _, err := LoadFrom(bad, ""); err == nil {
		t.Fatalf("malformed json should fail")
	}

	t.Setenv("JWT_SECRET", "s")
	t.Setenv("REDIS_PORT", "not-a-number")
	if _, err := LoadFrom(filepath.Join(dir, "none.json"), ""); err == nil {
		t.Fatalf("non-numeric REDIS_PORT should fail")
	}
}
