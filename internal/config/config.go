// Package config provides YAML-based configuration loading for the crank relay.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/zulandar/aocrank/internal/logging"
	"gopkg.in/yaml.v3"
)

// Config is the top-level relay configuration, loaded from crank.yaml.
type Config struct {
	Database DatabaseConfig `yaml:"database"`
	HTTP     HTTPConfig     `yaml:"http"`
	Log      logging.Config `yaml:"log"`
	Locator  LocatorConfig  `yaml:"locator"`
	Cache    CacheConfig    `yaml:"cache"`
	Signer   SignerConfig   `yaml:"signer"`
	Compute  ComputeConfig  `yaml:"compute"`
	Crank    CrankConfig    `yaml:"crank"`
	Monitor  MonitorConfig  `yaml:"monitor"`
	Alert    AlertConfig    `yaml:"alert"`
}

// DatabaseConfig selects the storage engine. Driver is "sqlite" (Path) or
// "mysql" (Host/Port/Name/User/Password).
type DatabaseConfig struct {
	Driver   string `yaml:"driver"`
	Path     string `yaml:"path"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
}

// HTTPConfig holds API server settings.
type HTTPConfig struct {
	Port int `yaml:"port"`
}

// LocatorConfig holds the process locator endpoints and throttling.
type LocatorConfig struct {
	RouterURL     string        `yaml:"router_url"`
	GatewayURL    string        `yaml:"gateway_url"`
	RatePerSecond float64       `yaml:"rate_per_second"`
	Burst         int           `yaml:"burst"`
	CacheTTL      time.Duration `yaml:"cache_ttl"`
	Timeout       time.Duration `yaml:"timeout"`
}

// CacheConfig selects the location cache backend: "memory" or "redis".
type CacheConfig struct {
	Type     string `yaml:"type"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// SignerConfig points at the remote signing service.
type SignerConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// ComputeConfig points at the compute unit serving evaluation results.
type ComputeConfig struct {
	URL       string        `yaml:"url"`
	PageLimit int           `yaml:"page_limit"`
	Timeout   time.Duration `yaml:"timeout"`
}

// CrankConfig tunes the crank service.
type CrankConfig struct {
	Concurrency int `yaml:"concurrency"`
}

// MonitorConfig tunes the monitor poller.
type MonitorConfig struct {
	Schedule    string `yaml:"schedule"`
	Concurrency int    `yaml:"concurrency"`
}

// AlertConfig holds optional failure alert sinks. A webhook URL takes
// precedence over a bot token.
type AlertConfig struct {
	SlackWebhookURL string `yaml:"slack_webhook_url"`
	SlackBotToken   string `yaml:"slack_bot_token"`
	SlackChannel    string `yaml:"slack_channel"`
}

// Load reads a YAML config file from path and returns a validated Config.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Database.Driver == "" {
		c.Database.Driver = "sqlite"
	}
	if c.Database.Driver == "sqlite" && c.Database.Path == "" {
		c.Database.Path = "crank.db"
	}
	if c.Database.Driver == "mysql" {
		if c.Database.Host == "" {
			c.Database.Host = "127.0.0.1"
		}
		if c.Database.Port == 0 {
			c.Database.Port = 3306
		}
		if c.Database.Name == "" {
			c.Database.Name = "crank"
		}
		if c.Database.User == "" {
			c.Database.User = "root"
		}
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 3004
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Locator.RatePerSecond == 0 {
		c.Locator.RatePerSecond = 20
	}
	if c.Locator.Burst == 0 {
		c.Locator.Burst = 40
	}
	if c.Locator.CacheTTL == 0 {
		c.Locator.CacheTTL = 5 * time.Minute
	}
	if c.Locator.Timeout == 0 {
		c.Locator.Timeout = 10 * time.Second
	}
	if c.Cache.Type == "" {
		c.Cache.Type = "memory"
	}
	if c.Signer.Timeout == 0 {
		c.Signer.Timeout = 30 * time.Second
	}
	if c.Compute.PageLimit == 0 {
		c.Compute.PageLimit = 50
	}
	if c.Compute.Timeout == 0 {
		c.Compute.Timeout = 30 * time.Second
	}
	if c.Crank.Concurrency == 0 {
		c.Crank.Concurrency = 4
	}
	if c.Monitor.Schedule == "" {
		c.Monitor.Schedule = "* * * * *"
	}
	if c.Monitor.Concurrency == 0 {
		c.Monitor.Concurrency = 4
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	switch c.Database.Driver {
	case "sqlite", "mysql":
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q must be sqlite or mysql", c.Database.Driver))
	}
	if c.Locator.RouterURL == "" {
		errs = append(errs, "locator.router_url is required")
	}
	if c.Locator.GatewayURL == "" {
		errs = append(errs, "locator.gateway_url is required")
	}
	if c.Locator.RatePerSecond < 0 {
		errs = append(errs, "locator.rate_per_second must not be negative")
	}
	switch c.Cache.Type {
	case "memory":
	case "redis":
		if c.Cache.Addr == "" {
			errs = append(errs, "cache.addr is required for redis")
		}
	default:
		errs = append(errs, fmt.Sprintf("cache.type %q must be memory or redis", c.Cache.Type))
	}
	if c.Signer.URL == "" {
		errs = append(errs, "signer.url is required")
	}
	if c.Compute.URL == "" {
		errs = append(errs, "compute.url is required")
	}
	if c.Crank.Concurrency < 0 {
		errs = append(errs, "crank.concurrency must not be negative")
	}
	if c.Monitor.Concurrency < 0 {
		errs = append(errs, "monitor.concurrency must not be negative")
	}
	if c.Alert.SlackBotToken != "" && c.Alert.SlackWebhookURL == "" && c.Alert.SlackChannel == "" {
		errs = append(errs, "alert.slack_channel is required with alert.slack_bot_token")
	}
	if _, err := ScheduleParser.Parse(c.Monitor.Schedule); err != nil {
		errs = append(errs, fmt.Sprintf("monitor.schedule %q: %v", c.Monitor.Schedule, err))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// ScheduleParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var ScheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
