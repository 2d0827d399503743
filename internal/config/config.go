package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

const (
	BackendSheets = "sheets"
	BackendSQL    = "sql"
	BackendMongo  = "mongo"
	BackendMemory = "memory"
)

// Config holds all configuration for the application.
type Config struct {
	AppEnv                string `yaml:"app_env"`
	HTTPPort              int    `yaml:"http_port"`
	GRPCPort              int    `yaml:"grpc_port"`
	GRPCReflectionEnabled bool   `yaml:"grpc_reflection_enabled"`

	StoreBackend          string `yaml:"store_backend"`
	GoogleCredentialsFile string `yaml:"google_credentials_file"`
	SpreadsheetID         string `yaml:"spreadsheet_id"`
	OPDWorksheet          string `yaml:"opd_worksheet"`
	IPDWorksheet          string `yaml:"ipd_worksheet"`
	DBDriver              string `yaml:"db_driver"`
	DBPath                string `yaml:"db_path"`
	MongoURI              string `yaml:"mongodb_uri"`
	MongoDatabase         string `yaml:"mongodb_database"`

	RedisAddr      string        `yaml:"redis_addr"`
	RedisPassword  string        `yaml:"redis_password"`
	RedisDB        int           `yaml:"redis_db"`
	RedisKeyPrefix string        `yaml:"redis_key_prefix"`
	ReportCacheTTL time.Duration `yaml:"report_cache_ttl"`
	Timezone       string        `yaml:"timezone"`

	CSRFKey            string   `yaml:"csrf_key"`
	SecureCookies      bool     `yaml:"secure_cookies"`
	CORSAllowedOrigins []string `yaml:"cors_allowed_origins"`

	ResendAPIKey  string        `yaml:"resend_api_key"`
	NotifyFrom    string        `yaml:"notify_from"`
	NotifyTo      string        `yaml:"notify_to"`
	NotifySubject string        `yaml:"notify_subject"`
	NotifyTimeout time.Duration `yaml:"notify_timeout"`
}

func defaults() *Config {
	return &Config{
		AppEnv:                "development",
		HTTPPort:              8080,
		GRPCPort:              50051,
		StoreBackend:          BackendSheets,
		GoogleCredentialsFile: "google_credentials.json",
		OPDWorksheet:          "OPD_Feedback",
		IPDWorksheet:          "IPD_Feedback",
		DBDriver:              "sqlite3",
		DBPath:                "./data/feedback.db",
		MongoDatabase:         "hospital_feedback",
		RedisKeyPrefix:        "feedback:",
		ReportCacheTTL:        10 * time.Minute,
		Timezone:              "Local",
		CORSAllowedOrigins:    []string{"*"},
		NotifySubject:         "New patient feedback",
		NotifyTimeout:         5 * time.Second,
	}
}

// Load reads the optional YAML file named by CONFIG_FILE and then applies
// environment overrides.
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables only.
func LoadFromEnv() *Config {
	cfg := defaults()
	cfg.applyEnv()
	return cfg
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.AppEnv = getEnv("APP_ENV", c.AppEnv)
	c.HTTPPort = getEnvInt("HTTP_PORT", c.HTTPPort)
	c.GRPCPort = getEnvInt("GRPC_PORT", c.GRPCPort)
	c.GRPCReflectionEnabled = getEnvBool("GRPC_REFLECTION_ENABLED", c.GRPCReflectionEnabled)

	c.StoreBackend = getEnv("STORE_BACKEND", c.StoreBackend)
	c.GoogleCredentialsFile = getEnv("GOOGLE_CREDENTIALS_FILE", c.GoogleCredentialsFile)
	c.SpreadsheetID = getEnv("SPREADSHEET_ID", c.SpreadsheetID)
	c.OPDWorksheet = getEnv("OPD_WORKSHEET", c.OPDWorksheet)
	c.IPDWorksheet = getEnv("IPD_WORKSHEET", c.IPDWorksheet)
	c.DBDriver = getEnv("DB_DRIVER", c.DBDriver)
	c.DBPath = getEnv("DB_PATH", c.DBPath)
	c.MongoURI = getEnv("MONGODB_URI", c.MongoURI)
	c.MongoDatabase = getEnv("MONGODB_DATABASE", c.MongoDatabase)

	c.RedisAddr = getEnv("REDIS_ADDR", c.RedisAddr)
	c.RedisPassword = getEnv("REDIS_PASSWORD", c.RedisPassword)
	c.RedisDB = getEnvInt("REDIS_DB", c.RedisDB)
	c.RedisKeyPrefix = getEnv("REDIS_KEY_PREFIX", c.RedisKeyPrefix)
	c.ReportCacheTTL = getEnvDuration("REPORT_CACHE_TTL", c.ReportCacheTTL)
	c.Timezone = getEnv("TIMEZONE", c.Timezone)

	c.CSRFKey = getEnv("CSRF_KEY", c.CSRFKey)
	c.SecureCookies = getEnvBool("SECURE_COOKIES", c.SecureCookies)
	c.CORSAllowedOrigins = getEnvList("CORS_ALLOWED_ORIGINS", c.CORSAllowedOrigins)

	c.ResendAPIKey = getEnv("RESEND_API_KEY", c.ResendAPIKey)
	c.NotifyFrom = getEnv("NOTIFY_FROM", c.NotifyFrom)
	c.NotifyTo = getEnv("NOTIFY_TO", c.NotifyTo)
	c.NotifySubject = getEnv("NOTIFY_SUBJECT", c.NotifySubject)
	c.NotifyTimeout = getEnvDuration("NOTIFY_TIMEOUT", c.NotifyTimeout)
}

// Validate checks the settings the selected backend depends on.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendSheets:
		if c.SpreadsheetID == "" {
			return fmt.Errorf("SPREADSHEET_ID is required for the sheets backend")
		}
	case BackendSQL:
		if c.DBPath == "" {
			return fmt.Errorf("DB_PATH is required for the sql backend")
		}
	case BackendMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGODB_URI is required for the mongo backend")
		}
	case BackendMemory:
	default:
		return fmt.Errorf("unknown STORE_BACKEND %q", c.StoreBackend)
	}

	if _, err := c.Location(); err != nil {
		return err
	}
	if c.CSRFKey != "" && len(c.CSRFKey) != 32 {
		return fmt.Errorf("CSRF_KEY must be 32 bytes, got %d", len(c.CSRFKey))
	}
	if len(c.CORSAllowedOrigins) == 0 {
		return fmt.Errorf("CORS_ALLOWED_ORIGINS must name at least one origin")
	}
	return nil
}

// Location resolves the configured time zone used to stamp and filter records.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || c.Timezone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE %q: %w", c.Timezone, err)
	}
	return loc, nil
}

// EmailEnabled reports whether every Resend setting is present.
func (c *Config) EmailEnabled() bool {
	return c.ResendAPIKey != "" && c.NotifyFrom != "" && c.NotifyTo != ""
}

// NewLogger creates a new Zap logger based on the config.
func NewLogger(cfg *Config) (*zap.Logger, error) {
	if cfg.AppEnv == "production" {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	n, err := strconv.Atoi(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvBool(key string, fallback bool) bool {
	b, err := strconv.ParseBool(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return b
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(getEnv(key, ""))
	if err != nil {
		return fallback
	}
	return d
}

// getEnvList splits a comma-separated value, dropping blank entries.
func getEnvList(key string, fallback []string) []string {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
