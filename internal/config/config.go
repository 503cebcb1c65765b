package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// EnvPath names the variable holding the config file path.
const EnvPath = "DASHBOARD_CONFIG_PATH"

const defaultPath = "configs/config.yaml"

type Config struct {
	Server struct {
		Address string `yaml:"address"`
	} `yaml:"server"`

	API struct {
		BaseURL         string  `yaml:"base_url"`
		APIKey          string  `yaml:"api_key"`
		TimeoutSeconds  int     `yaml:"timeout_seconds"`
		CacheTTLSeconds int     `yaml:"cache_ttl_seconds"`
		RateLimitRPS    float64 `yaml:"rate_limit_rps"`
		RateLimitBurst  int     `yaml:"rate_limit_burst"`
	} `yaml:"api"`

	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Dashboard struct {
		Timezone           string `yaml:"timezone"`
		LoadTimeoutSeconds int    `yaml:"load_timeout_seconds"`
	} `yaml:"dashboard"`

	Journal struct {
		Enabled             bool   `yaml:"enabled"`
		Path                string `yaml:"path"`
		BackupDir           string `yaml:"backup_dir"`
		BackupIntervalHours int    `yaml:"backup_interval_hours"`
		RetentionDays       int    `yaml:"retention_days"`
	} `yaml:"journal"`

	AMQP struct {
		URL   string `yaml:"url"`
		Queue string `yaml:"queue"`
	} `yaml:"amqp"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Logging struct {
		Level   string `yaml:"level"`
		Console bool   `yaml:"console"`
	} `yaml:"logging"`
}

// Path returns the config path from DASHBOARD_CONFIG_PATH or the default.
func Path() string {
	if p := os.Getenv(EnvPath); p != "" {
		return p
	}
	return defaultPath
}

// Load reads the YAML config at path. A .env file in the working directory,
// when present, is loaded into the environment first.
func Load(path string) (*Config, error) {
	if path == "" {
		path = defaultPath
	}

	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			return nil, fmt.Errorf("load .env: %w", err)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Support ${ENV_VAR} placeholders in YAML config.
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if cfg.Journal.Enabled {
		if cfg.Journal.Path == "" {
			cfg.Journal.Path = "data/journal.db"
		}
		if err = os.MkdirAll(filepath.Dir(cfg.Journal.Path), 0o755); err != nil {
			return nil, err
		}
	}

	if err = cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if c.API.BaseURL == "" {
		errs = append(errs, errors.New("api.base_url is required"))
	} else if u, err := url.Parse(c.API.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("api.base_url %q is not an absolute URL", c.API.BaseURL))
	}
	if c.API.TimeoutSeconds < 0 {
		errs = append(errs, errors.New("api.timeout_seconds must not be negative"))
	}
	if c.API.RateLimitRPS < 0 {
		errs = append(errs, errors.New("api.rate_limit_rps must not be negative"))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, fmt.Errorf("dashboard.timezone: %w", err))
	}
	if c.Logging.Level != "" {
		if _, err := zerolog.ParseLevel(strings.ToLower(c.Logging.Level)); err != nil {
			errs = append(errs, fmt.Errorf("logging.level: %w", err))
		}
	}
	if c.AMQP.URL != "" && !strings.HasPrefix(c.AMQP.URL, "amqp") {
		errs = append(errs, fmt.Errorf("amqp.url %q must use amqp:// or amqps://", c.AMQP.URL))
	}

	return errors.Join(errs...)
}

func (c *Config) ServerAddress() string {
	if c.Server.Address == "" {
		return ":8080"
	}
	return c.Server.Address
}

func (c *Config) APITimeout() time.Duration {
	if c.API.TimeoutSeconds <= 0 {
		return 10 * time.Second
	}
	return time.Duration(c.API.TimeoutSeconds) * time.Second
}

// APICacheTTL is zero when caching is disabled.
func (c *Config) APICacheTTL() time.Duration {
	if c.API.CacheTTLSeconds <= 0 {
		return 0
	}
	return time.Duration(c.API.CacheTTLSeconds) * time.Second
}

func (c *Config) RateLimitBurst() int {
	if c.API.RateLimitBurst <= 0 {
		return 5
	}
	return c.API.RateLimitBurst
}

// Location is the zone "today" is computed in. Empty means Local.
func (c *Config) Location() (*time.Location, error) {
	if c.Dashboard.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Dashboard.Timezone)
}

func (c *Config) LoadTimeout() time.Duration {
	if c.Dashboard.LoadTimeoutSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.Dashboard.LoadTimeoutSeconds) * time.Second
}

// JournalBackupInterval is zero when backups are disabled.
func (c *Config) JournalBackupInterval() time.Duration {
	if c.Journal.BackupDir == "" {
		return 0
	}
	if c.Journal.BackupIntervalHours <= 0 {
		return 24 * time.Hour
	}
	return time.Duration(c.Journal.BackupIntervalHours) * time.Hour
}

func (c *Config) JournalRetention() time.Duration {
	if c.Journal.RetentionDays <= 0 {
		return 14 * 24 * time.Hour
	}
	return time.Duration(c.Journal.RetentionDays) * 24 * time.Hour
}

func (c *Config) AMQPQueue() string {
	if c.AMQP.Queue == "" {
		return "hostdesk.events"
	}
	return c.AMQP.Queue
}

func (c *Config) HealthCheckPort() int {
	if c.Monitoring.HealthCheckPort <= 0 {
		return 8081
	}
	return c.Monitoring.HealthCheckPort
}

func (c *Config) PrometheusPort() int {
	if c.Monitoring.PrometheusPort <= 0 {
		return 9090
	}
	return c.Monitoring.PrometheusPort
}

// LogLevel defaults to info.
func (c *Config) LogLevel() zerolog.Level {
	lvl, err := zerolog.ParseLevel(strings.ToLower(c.Logging.Level))
	if err != nil || c.Logging.Level == "" {
		return zerolog.InfoLevel
	}
	return lvl
}
