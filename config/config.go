package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Auth       AuthConfig       `yaml:"auth"`
	Source     SourceConfig     `yaml:"source"`
	Purge      PurgeConfig      `yaml:"purge"`
	Export     ExportConfig     `yaml:"export"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
	Notifier   NotifierConfig   `yaml:"notifier"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port            int     `yaml:"port"`
	RateLimitPerSec float64 `yaml:"rate_limit_per_sec"`
	RateLimitBurst  int     `yaml:"rate_limit_burst"`
	CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
}

// CacheTTL returns the response cache lifetime.
func (s ServerConfig) CacheTTL() time.Duration {
	return time.Duration(s.CacheTTLSeconds) * time.Second
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"` // postgres or sqlite
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
	LogLevel               string `yaml:"log_level"`
}

// AuthConfig controls dashboard sign-in sessions.
type AuthConfig struct {
	JWTSecret          string        `yaml:"jwt_secret"`
	SessionTTLMinutes  int           `yaml:"session_ttl_minutes"`
	WarningLeadSeconds int           `yaml:"warning_lead_seconds"`
	SessionTTL         time.Duration `yaml:"-"`
	WarningLead        time.Duration `yaml:"-"`
}

// SourceConfig describes the upstream table API that attendance records are synced from.
type SourceConfig struct {
	Enabled         bool              `yaml:"enabled"`
	BaseURL         string            `yaml:"base_url"`
	Table           string            `yaml:"table"`
	APIKey          string            `yaml:"api_key"`
	Headers         map[string]string `yaml:"headers"`
	PageSize        int               `yaml:"page_size"`
	IntervalSeconds int               `yaml:"interval_seconds"`
	Interval        time.Duration     `yaml:"-"` // Ignored by YAML parser
	HTTPProxy       string            `yaml:"http_proxy"`
}

// PurgeConfig guards the bulk delete operation.
type PurgeConfig struct {
	PasswordHash string `yaml:"password_hash"` // bcrypt
}

// ExportConfig names the generated spreadsheet.
type ExportConfig struct {
	SheetName string `yaml:"sheet_name"`
	FileName  string `yaml:"file_name"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// Enabled reports whether both VAPID keys are present.
func (p PushConfig) Enabled() bool {
	return p.PublicKey != "" && p.PrivateKey != ""
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// NotifierConfig controls how often sessions are checked for an upcoming expiry.
type NotifierConfig struct {
	IntervalSeconds int           `yaml:"interval_seconds"`
	Interval        time.Duration `yaml:"-"`
}

// Load reads the configuration from the given path.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)
	return &cfg, nil
}

// applyEnv lets secrets live outside the YAML file.
func applyEnv(cfg *Config) {
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("AUTH_JWT_SECRET"); v != "" {
		cfg.Auth.JWTSecret = v
	}
	if v := os.Getenv("SOURCE_API_KEY"); v != "" {
		cfg.Source.APIKey = v
	}
	if v := os.Getenv("PURGE_PASSWORD_HASH"); v != "" {
		cfg.Purge.PasswordHash = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 60
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}

	if cfg.Auth.SessionTTLMinutes <= 0 {
		cfg.Auth.SessionTTLMinutes = 30
	}
	if cfg.Auth.WarningLeadSeconds <= 0 {
		cfg.Auth.WarningLeadSeconds = 30
	}
	cfg.Auth.SessionTTL = time.Duration(cfg.Auth.SessionTTLMinutes) * time.Minute
	cfg.Auth.WarningLead = time.Duration(cfg.Auth.WarningLeadSeconds) * time.Second
	if cfg.Auth.WarningLead >= cfg.Auth.SessionTTL {
		log.Printf("auth.warning_lead_seconds is not shorter than the session; defaulting to 30s")
		cfg.Auth.WarningLead = 30 * time.Second
	}

	if cfg.Source.Table == "" {
		cfg.Source.Table = "empStatus"
	}
	if cfg.Source.PageSize <= 0 {
		cfg.Source.PageSize = 1000
	}
	if cfg.Source.IntervalSeconds <= 0 {
		cfg.Source.IntervalSeconds = 60
	}
	cfg.Source.Interval = time.Duration(cfg.Source.IntervalSeconds) * time.Second

	if cfg.Export.SheetName == "" {
		cfg.Export.SheetName = "EmployeeData"
	}
	if cfg.Export.FileName == "" {
		cfg.Export.FileName = "employee_data.xlsx"
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}

	if cfg.Notifier.IntervalSeconds <= 0 {
		cfg.Notifier.IntervalSeconds = 10
	}
	cfg.Notifier.Interval = time.Duration(cfg.Notifier.IntervalSeconds) * time.Second
}
