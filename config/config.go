package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Backend  BackendConfig  `yaml:"backend"`
	Database DatabaseConfig `yaml:"database"`
	Form     FormConfig     `yaml:"form"`
	Logging  LoggingConfig  `yaml:"logging"`
	Export   ExportConfig   `yaml:"export"`
}

// ServerConfig holds the web front end's HTTP settings.
type ServerConfig struct {
	Port               int           `yaml:"port"`
	CookieSecure       bool          `yaml:"cookie_secure"`
	LoginRatePerSec    float64       `yaml:"login_rate_per_sec"`
	LoginBurst         int           `yaml:"login_burst"`
	CacheTTLSeconds    int           `yaml:"cache_ttl_seconds"`
	FormTTLMinutes     int           `yaml:"form_ttl_minutes"`
	ShutdownTimeoutSec int           `yaml:"shutdown_timeout_seconds"`
	ShutdownTimeout    time.Duration `yaml:"-"`
}

// BackendConfig points at the REST backend.
type BackendConfig struct {
	BaseURL        string        `yaml:"base_url"`
	TimeoutSeconds int           `yaml:"timeout_seconds"`
	Timeout        time.Duration `yaml:"-"`
	HTTPProxy      string        `yaml:"http_proxy"`
}

// DatabaseConfig holds the session database connection configuration.
type DatabaseConfig struct {
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
}

// FormConfig tunes the entry form engine.
type FormConfig struct {
	DebounceMillis  int           `yaml:"debounce_millis"`
	Debounce        time.Duration `yaml:"-"`
	MinLookupLength int           `yaml:"min_lookup_length"`
}

// LoggingConfig selects log level and output format ("text" or "json").
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ExportConfig configures invoice PDF rendering.
type ExportConfig struct {
	ChromiumPath      string        `yaml:"chromium_path"`
	PDFTimeoutSeconds int           `yaml:"pdf_timeout_seconds"`
	PDFTimeout        time.Duration `yaml:"-"`
}

// Load reads the configuration from the given path and applies environment
// overrides. A missing file is not an error; defaults and the environment
// are enough to run against a local backend.
func Load(path string) (*Config, error) {
	var cfg Config

	f, err := os.Open(path)
	switch {
	case err == nil:
		defer f.Close()
		if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
			return nil, err
		}
	case os.IsNotExist(err):
		log.Printf("config file %s not found; using defaults and environment", path)
	default:
		return nil, err
	}

	applyEnv(&cfg)
	applyDefaults(&cfg)
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("BACKEND_BASE_URL"); v != "" {
		cfg.Backend.BaseURL = v
	}
	if v := os.Getenv("DATABASE_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		} else {
			log.Printf("ignoring invalid PORT %q: %v", v, err)
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.LoginRatePerSec <= 0 {
		cfg.Server.LoginRatePerSec = 1
	}
	if cfg.Server.LoginBurst <= 0 {
		cfg.Server.LoginBurst = 5
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 300
	}
	if cfg.Server.FormTTLMinutes <= 0 {
		cfg.Server.FormTTLMinutes = 30
	}
	if cfg.Server.ShutdownTimeoutSec <= 0 {
		cfg.Server.ShutdownTimeoutSec = 5
	}
	cfg.Server.ShutdownTimeout = time.Duration(cfg.Server.ShutdownTimeoutSec) * time.Second

	if cfg.Backend.BaseURL == "" {
		cfg.Backend.BaseURL = "http://localhost:3000/api/v1"
	}
	if cfg.Backend.TimeoutSeconds <= 0 {
		cfg.Backend.TimeoutSeconds = 30
	}
	cfg.Backend.Timeout = time.Duration(cfg.Backend.TimeoutSeconds) * time.Second

	if cfg.Database.DSN == "" {
		cfg.Database.DSN = "file:sessions.db"
	}

	if cfg.Form.DebounceMillis <= 0 {
		cfg.Form.DebounceMillis = 800
	}
	cfg.Form.Debounce = time.Duration(cfg.Form.DebounceMillis) * time.Millisecond
	if cfg.Form.MinLookupLength <= 0 {
		cfg.Form.MinLookupLength = 3
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}

	if cfg.Export.PDFTimeoutSeconds <= 0 {
		cfg.Export.PDFTimeoutSeconds = 15
	}
	cfg.Export.PDFTimeout = time.Duration(cfg.Export.PDFTimeoutSeconds) * time.Second
}
