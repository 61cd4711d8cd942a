package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/joho/godotenv"
)

// AppConfig holds environment driven configuration values.
// Secrets have no defaults in code and must come from config.json, .env or the environment.
type AppConfig struct {
	AppPort            string
	JWTSecret          string
	TokenTTLHours      int
	RateLimitPerMinute int
	AllowedOrigins     []string
	AdminUsernames     []string
	// Seconds between registration attempts per IP; 0 disables
	RegisterCooldownSec int
	// Require a solved captcha on registration
	RegisterCaptchaEnabled bool
	// Gin framework configuration
	GinMode string
	GinPath string
	// Database: mysql, postgres, sqlite or memory
	DBDriver    string
	DatabaseURI string
	DBHost      string
	DBPort      string
	DBUser      string
	DBPassword  string
	DBName      string
	DBSSLMode   string
	SQLitePath  string
	// Redis for caching and the token blacklist
	RedisEnabled    bool
	RedisHost       string
	RedisPort       int
	RedisDB         int
	RedisPassword   string
	CacheTTLSeconds int
	// Logging configuration
	LogLevel      string
	LogPath       string
	LogMaxSizeMB  int
	LogMaxBackups int
	LogMaxAgeDays int
	LogCompress   bool
}

// ErrMissingJWTSecret is returned when no signing secret is configured.
var ErrMissingJWTSecret = errors.New("JWT_SECRET must be set")

var (
	cfg    AppConfig
	loaded bool
	mu     sync.RWMutex
)

// Load loads the application configuration once during boot and exits on failure.
func Load() AppConfig {
	mu.RLock()
	if loaded {
		defer mu.RUnlock()
		return cfg
	}
	mu.RUnlock()

	c, err := LoadFrom(filepath.Join("config", "config.json"), ".env")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	Set(c)
	return c
}

// LoadFrom builds a configuration with precedence
// jsonPath -> defaults -> envFile -> process environment.
// Missing files are ignored; malformed JSON is an error.
func LoadFrom(jsonPath, envFile string) (AppConfig, error) {
	var c AppConfig
	if err := loadJSONConfig(jsonPath, &c); err != nil {
		return AppConfig{}, fmt.Errorf("parse %s: %w", jsonPath, err)
	}
	applyDefaults(&c)

	// godotenv never overrides variables already present in the process.
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return AppConfig{}, fmt.Errorf("read %s: %w", envFile, err)
		}
	}
	if err := applyEnvOverrides(&c); err != nil {
		return AppConfig{}, err
	}

	if c.JWTSecret == "" {
		return AppConfig{}, ErrMissingJWTSecret
	}
	return c, nil
}

// Get returns the cached configuration, loading it if necessary.
func Get() AppConfig {
	mu.RLock()
	if loaded {
		defer mu.RUnlock()
		return cfg
	}
	mu.RUnlock()
	return Load()
}

// Set replaces the cached configuration. Tests use it to avoid touching disk.
func Set(c AppConfig) {
	mu.Lock()
	defer mu.Unlock()
	cfg = c
	loaded = true
}

// IsAdmin reports whether username is configured as an admin (case-insensitive).
func (c AppConfig) IsAdmin(username string) bool {
	uname := strings.TrimSpace(username)
	if uname == "" {
		return false
	}
	for _, u := range c.AdminUsernames {
		if strings.EqualFold(strings.TrimSpace(u), uname) {
			return true
		}
	}
	return false
}

type section map[string]any

func (s section) str(key string) string {
	v, _ := s[key].(string)
	return v
}

func (s section) num(key string) int {
	if f, ok := s[key].(float64); ok {
		return int(f)
	}
	return 0
}

func (s section) flag(key string) (bool, bool) {
	b, ok := s[key].(bool)
	return b, ok
}

func (s section) list(key string) []string {
	arr, ok := s[key].([]any)
	if !ok {
		return nil
	}
	res := make([]string, 0, len(arr))
	for _, it := range arr {
		if v, ok := it.(string); ok {
			res = append(res, v)
		}
	}
	return res
}

func (s section) sub(key string) section {
	m, _ := s[key].(map[string]any)
	return m
}

// loadJSONConfig reads the grouped JSON file into out if present.
func loadJSONConfig(path string, out *AppConfig) error {
	f, err := os.Open(path)
	if err != nil {
		return nil // silently ignore missing file
	}
	defer f.Close()

	var raw section
	if err := json.NewDecoder(f).Decode(&raw); err != nil {
		return err
	}

	if app := raw.sub("app"); app != nil {
		out.AppPort = app.str("AppPort")
		out.JWTSecret = app.str("JWTSecret")
		out.TokenTTLHours = app.num("TokenTTLHours")
		out.RateLimitPerMinute = app.num("RateLimitPerMinute")
		out.AllowedOrigins = app.list("AllowedOrigins")
		out.AdminUsernames = app.list("AdminUsernames")
	}

	if rg := raw.sub("register"); rg != nil {
		out.RegisterCooldownSec = rg.num("CooldownSec")
		out.RegisterCaptchaEnabled, _ = rg.flag("CaptchaEnabled")
	}

	if adm := raw.sub("admin"); adm != nil {
		if list := adm.list("Usernames"); len(list) > 0 {
			out.AdminUsernames = list
		}
	}

	if dbs := raw.sub("database"); dbs != nil {
		out.DBDriver = dbs.str("Driver")
		out.DatabaseURI = dbs.str("DatabaseURI")
		out.DBHost = dbs.str("DBHost")
		out.DBPort = dbs.str("DBPort")
		out.DBUser = dbs.str("DBUser")
		out.DBPassword = dbs.str("DBPassword")
		out.DBName = dbs.str("DBName")
		out.DBSSLMode = dbs.str("SSLMode")
		out.SQLitePath = dbs.str("SQLitePath")
	}

	if rds := raw.sub("redis"); rds != nil {
		out.RedisEnabled, _ = rds.flag("Enabled")
		out.RedisHost = rds.str("RedisHost")
		out.RedisPort = rds.num("RedisPort")
		out.RedisDB = rds.num("RedisDB")
		out.RedisPassword = rds.str("RedisPassword")
		out.CacheTTLSeconds = rds.num("CacheTTLSeconds")
	}

	if lg := raw.sub("log"); lg != nil {
		out.LogLevel = lg.str("Level")
		out.LogPath = lg.str("Path")
		out.GinMode = lg.str("GinMode")
		out.GinPath = lg.str("GinPath")
		out.LogMaxSizeMB = lg.num("MaxSizeMB")
		out.LogMaxBackups = lg.num("MaxBackups")
		out.LogMaxAgeDays = lg.num("MaxAgeDays")
		out.LogCompress, _ = lg.flag("Compress")
	}

	// gin section (backward compatibility)
	if g := raw.sub("gin"); g != nil {
		if v := g.str("Mode"); v != "" {
			out.GinMode = v
		}
		if v := g.str("LogPath"); v != "" {
			out.GinPath = v
		}
	}
	return nil
}

// applyDefaults sets sane defaults for zero-value fields.
func applyDefaults(c *AppConfig) {
	if c.AppPort == "" {
		c.AppPort = "8080"
	}
	if c.TokenTTLHours == 0 {
		c.TokenTTLHours = 72
	}
	if c.GinMode == "" {
		c.GinMode = "release"
	}
	if c.GinPath == "" {
		c.GinPath = "logs/go_gin.log"
	}
	if c.RateLimitPerMinute == 0 {
		c.RateLimitPerMinute = 60
	}
	if len(c.AllowedOrigins) == 0 {
		c.AllowedOrigins = []string{"*"}
	}
	if c.DBDriver == "" {
		c.DBDriver = "sqlite"
	}
	if c.DBHost == "" {
		c.DBHost = "127.0.0.1"
	}
	if c.DBUser == "" {
		c.DBUser = "root"
	}
	if c.DBName == "" {
		c.DBName = "villageone"
	}
	if c.DBSSLMode == "" {
		c.DBSSLMode = "disable"
	}
	if c.SQLitePath == "" {
		c.SQLitePath = "data/villageone.db"
	}
	if c.RedisHost == "" {
		c.RedisHost = "127.0.0.1"
	}
	if c.RedisPort == 0 {
		c.RedisPort = 6379
	}
	if c.CacheTTLSeconds == 0 {
		c.CacheTTLSeconds = 3600
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogMaxSizeMB == 0 {
		c.LogMaxSizeMB = 100
	}
	if c.LogMaxBackups == 0 {
		c.LogMaxBackups = 3
	}
	if c.LogMaxAgeDays == 0 {
		c.LogMaxAgeDays = 7
	}
}

// applyEnvOverrides maps known environment variables onto config values when present.
func applyEnvOverrides(c *AppConfig) error {
	strs := map[string]*string{
		"APP_PORT":       &c.AppPort,
		"JWT_SECRET":     &c.JWTSecret,
		"GIN_MODE":       &c.GinMode,
		"GIN_PATH":       &c.GinPath,
		"DB_DRIVER":      &c.DBDriver,
		"DATABASE_URI":   &c.DatabaseURI,
		"DB_HOST":        &c.DBHost,
		"DB_PORT":        &c.DBPort,
		"DB_USER":        &c.DBUser,
		"DB_PASSWORD":    &c.DBPassword,
		"DB_NAME":        &c.DBName,
		"DB_SSLMODE":     &c.DBSSLMode,
		"SQLITE_PATH":    &c.SQLitePath,
		"REDIS_HOST":     &c.RedisHost,
		"REDIS_PASSWORD": &c.RedisPassword,
		"LOG_LEVEL":      &c.LogLevel,
		"LOG_PATH":       &c.LogPath,
	}
	for key, dst := range strs {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}

	ints := map[string]*int{
		"TOKEN_TTL_HOURS":       &c.TokenTTLHours,
		"RATE_LIMIT_PER_MINUTE": &c.RateLimitPerMinute,
		"REGISTER_COOLDOWN_SEC": &c.RegisterCooldownSec,
		"REDIS_PORT":            &c.RedisPort,
		"REDIS_DB":              &c.RedisDB,
		"CACHE_TTL_SECONDS":     &c.CacheTTLSeconds,
		"LOG_MAX_SIZE_MB":       &c.LogMaxSizeMB,
		"LOG_MAX_BACKUPS":       &c.LogMaxBackups,
		"LOG_MAX_AGE_DAYS":      &c.LogMaxAgeDays,
	}
	for key, dst := range ints {
		v := os.Getenv(key)
		if v == "" {
			continue
		}
		i, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid integer value %s=%s: %w", key, v, err)
		}
		*dst = i
	}

	if v := os.Getenv("REDIS_ENABLED"); v != "" {
		c.RedisEnabled = v == "true" || v == "1"
	}
	if v := os.Getenv("REGISTER_CAPTCHA_ENABLED"); v != "" {
		c.RegisterCaptchaEnabled = v == "true" || v == "1"
	}
	if v := os.Getenv("LOG_COMPRESS"); v != "" {
		c.LogCompress = v == "true"
	}
	if v := os.Getenv("CORS_ALLOWED_ORIGINS"); v != "" {
		c.AllowedOrigins = splitAndTrim(v)
	}
	if v := os.Getenv("ADMIN_USERNAMES"); v != "" {
		c.AdminUsernames = splitAndTrim(v)
	}
	return nil
}

func splitAndTrim(raw string) []string {
	items := []string{}
	for _, item := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(item); trimmed != "" {
			items = append(items, trimmed)
		}
	}
	return items
}
