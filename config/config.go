package config

import (
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Database     DatabaseConfig     `yaml:"database"`
	Booking      BookingConfig      `yaml:"booking"`
	Reaper       ReaperConfig       `yaml:"reaper"`
	Notification NotificationConfig `yaml:"notification"`
	Push         PushConfig         `yaml:"push"`
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port int `yaml:"port"`
	// RequestIdentityHeader carries the requester identity set by the upstream auth proxy.
	RequestIdentityHeader string          `yaml:"request_identity_header"`
	AdminIdentities       []string        `yaml:"admin_identities"`
	RateLimitPerSec       float64         `yaml:"rate_limit_per_sec"`
	RateLimitBurst        int             `yaml:"rate_limit_burst"`
	CacheTTLSeconds       int             `yaml:"cache_ttl_seconds"`
	CacheTTL              time.Duration   `yaml:"-"`
	HoldRateLimit         HoldLimitConfig `yaml:"hold_rate_limit"`
}

// HoldLimitConfig is the fixed window applied to hold requests per requester.
type HoldLimitConfig struct {
	Requests      int           `yaml:"requests"`
	WindowSeconds int           `yaml:"window_seconds"`
	Window        time.Duration `yaml:"-"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                    string `yaml:"driver"` // postgres or sqlite
	DSN                       string `yaml:"dsn"`
	MaxOpenConns              int    `yaml:"max_open_conns"`
	MaxIdleConns              int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes    int    `yaml:"conn_max_lifetime_minutes"`
	LogLevel                  string `yaml:"log_level"`
	EnableExclusionConstraint bool   `yaml:"enable_exclusion_constraint"`
}

// BookingConfig holds lifecycle timings.
type BookingConfig struct {
	HoldTTLMinutes int           `yaml:"hold_ttl_minutes"`
	HoldTTL        time.Duration `yaml:"-"`
	TokenTTLHours  int           `yaml:"token_ttl_hours"`
	TokenTTL       time.Duration `yaml:"-"`
}

// ReaperConfig controls the background sweep of expired holds and finished bookings.
type ReaperConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Schedule string `yaml:"schedule"` // cron spec, e.g. "@every 1m"
}

// NotificationConfig holds the configuration for the notification worker pool.
type NotificationConfig struct {
	WorkerPoolSize  int        `yaml:"worker_pool_size"`
	QueueSize       int        `yaml:"queue_size"`
	ReminderMinutes int        `yaml:"reminder_minutes"`
	Organizer       string     `yaml:"organizer"`
	UIDDomain       string     `yaml:"uid_domain"`
	SMTP            SMTPConfig `yaml:"smtp"`
}

// SMTPConfig is the outbound mail relay. An empty host disables email.
type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
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

	ApplyDefaults(&cfg)
	return &cfg, nil
}

// ApplyDefaults fills zero values and derives the duration fields.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RequestIdentityHeader == "" {
		cfg.Server.RequestIdentityHeader = "X-Requester-Identity"
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
	cfg.Server.CacheTTL = time.Duration(cfg.Server.CacheTTLSeconds) * time.Second

	if cfg.Server.HoldRateLimit.Requests <= 0 {
		cfg.Server.HoldRateLimit.Requests = 5
	}
	if cfg.Server.HoldRateLimit.WindowSeconds <= 0 {
		cfg.Server.HoldRateLimit.WindowSeconds = 60
	}
	cfg.Server.HoldRateLimit.Window = time.Duration(cfg.Server.HoldRateLimit.WindowSeconds) * time.Second

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}
	if cfg.Database.LogLevel == "" {
		cfg.Database.LogLevel = "warn"
	}

	if cfg.Booking.HoldTTLMinutes <= 0 {
		cfg.Booking.HoldTTLMinutes = 10
	}
	cfg.Booking.HoldTTL = time.Duration(cfg.Booking.HoldTTLMinutes) * time.Minute
	if cfg.Booking.TokenTTLHours <= 0 {
		cfg.Booking.TokenTTLHours = 72
	}
	cfg.Booking.TokenTTL = time.Duration(cfg.Booking.TokenTTLHours) * time.Hour

	if cfg.Reaper.Schedule == "" {
		cfg.Reaper.Schedule = "@every 1m"
	}

	if cfg.Notification.WorkerPoolSize <= 0 {
		log.Printf("notification.worker_pool_size is not set or invalid; defaulting to 1")
		cfg.Notification.WorkerPoolSize = 1
	}
	if cfg.Notification.QueueSize <= 0 {
		cfg.Notification.QueueSize = 64
	}
	if cfg.Notification.ReminderMinutes <= 0 {
		cfg.Notification.ReminderMinutes = 15
	}
	if cfg.Notification.UIDDomain == "" {
		cfg.Notification.UIDDomain = "booking.local"
	}
	if cfg.Notification.SMTP.Port <= 0 {
		cfg.Notification.SMTP.Port = 587
	}

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}
}
