// Package config loads and validates gatesync's configuration from a
// YAML file, with environment overrides under the GATESYNC_ prefix.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Terminal holds the access-terminal connection settings.
type Terminal struct {
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	Secure      bool          `mapstructure:"secure"`
	InsecureTLS bool          `mapstructure:"insecure_tls"`
	Username    string        `mapstructure:"username"`
	Password    string        `mapstructure:"password"`
	TargetName  string        `mapstructure:"target_name"`
	PageSize    int           `mapstructure:"page_size"`
	FetchAll    bool          `mapstructure:"fetch_all"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// Discovery holds the subnet-scan tuning knobs.
type Discovery struct {
	Concurrency     int           `mapstructure:"concurrency"`
	PerHostTimeout  time.Duration `mapstructure:"per_host_timeout"`
	PingTimeout     time.Duration `mapstructure:"ping_timeout"`
	ProbesPerSecond float64       `mapstructure:"probes_per_second"`
	EnableMDNS      bool          `mapstructure:"enable_mdns"`
	EnableSNMP      bool          `mapstructure:"enable_snmp"`
	SNMPCommunity   string        `mapstructure:"snmp_community"`
}

// Cloud holds the attendance-service delivery settings.
type Cloud struct {
	Endpoint   string        `mapstructure:"endpoint"`
	APIKey     string        `mapstructure:"api_key"`
	SchoolCode string        `mapstructure:"school_code"`
	Timeout    time.Duration `mapstructure:"timeout"`
	Attempts   int           `mapstructure:"attempts"`
	RetryDelay time.Duration `mapstructure:"retry_delay"`
}

// Config is the full gatesync configuration.
type Config struct {
	Terminal  Terminal  `mapstructure:"terminal"`
	Discovery Discovery `mapstructure:"discovery"`
	Cloud     Cloud     `mapstructure:"cloud"`

	// CheckoutAfter is the earliest clock ("HH:MM") at which an event
	// counts as a checkout rather than a late check-in.
	CheckoutAfter string `mapstructure:"checkout_after"`

	StorePath    string        `mapstructure:"store_path"`
	StatusListen string        `mapstructure:"status_listen"`
	SyncInterval time.Duration `mapstructure:"sync_interval"`

	path string
}

// Load reads the configuration file at path, applies defaults and
// environment overrides, and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("GATESYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %q: %w", path, err)
		}
	}

	cfg := &Config{path: path}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Empty defaults register the keys so environment-only overrides
	// survive Unmarshal.
	v.SetDefault("terminal.host", "")
	v.SetDefault("terminal.username", "")
	v.SetDefault("terminal.password", "")
	v.SetDefault("terminal.target_name", "")
	v.SetDefault("cloud.endpoint", "")
	v.SetDefault("cloud.api_key", "")
	v.SetDefault("cloud.school_code", "")
	v.SetDefault("terminal.port", 80)
	v.SetDefault("terminal.page_size", 30)
	v.SetDefault("terminal.fetch_all", true)
	v.SetDefault("terminal.timeout", "10s")
	v.SetDefault("discovery.concurrency", 50)
	v.SetDefault("discovery.per_host_timeout", "1s")
	v.SetDefault("discovery.ping_timeout", "300ms")
	v.SetDefault("discovery.probes_per_second", 100.0)
	v.SetDefault("discovery.enable_mdns", true)
	v.SetDefault("discovery.enable_snmp", false)
	v.SetDefault("discovery.snmp_community", "public")
	v.SetDefault("cloud.timeout", "30s")
	v.SetDefault("cloud.attempts", 5)
	v.SetDefault("cloud.retry_delay", "3s")
	v.SetDefault("checkout_after", "14:30")
	v.SetDefault("store_path", "gatesync.db")
	v.SetDefault("status_listen", "")
	v.SetDefault("sync_interval", "15m")
}

// Validate checks required fields and value ranges.
func (c *Config) Validate() error {
	if c.Terminal.Username == "" {
		return fmt.Errorf("config: terminal.username is required")
	}
	if c.Terminal.Password == "" {
		return fmt.Errorf("config: terminal.password is required")
	}
	if c.Terminal.Port <= 0 || c.Terminal.Port > 65535 {
		return fmt.Errorf("config: terminal.port %d out of range", c.Terminal.Port)
	}
	if c.Terminal.PageSize <= 0 {
		return fmt.Errorf("config: terminal.page_size must be positive")
	}
	if c.Cloud.Endpoint == "" {
		return fmt.Errorf("config: cloud.endpoint is required")
	}
	if c.Cloud.Attempts <= 0 {
		return fmt.Errorf("config: cloud.attempts must be positive")
	}
	if _, _, err := c.Checkout(); err != nil {
		return err
	}
	return nil
}

// Checkout parses CheckoutAfter into hour and minute components.
func (c *Config) Checkout() (hour, minute int, err error) {
	parts := strings.SplitN(c.CheckoutAfter, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("config: checkout_after %q is not HH:MM", c.CheckoutAfter)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("config: checkout_after hour %q out of range", parts[0])
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("config: checkout_after minute %q out of range", parts[1])
	}
	return hour, minute, nil
}

// SaveTerminalHost persists a healed terminal address back to the
// configuration file, so the next run verifies the new address first.
// A config loaded without a file path keeps the change in memory only.
func (c *Config) SaveTerminalHost(host string) error {
	c.Terminal.Host = host
	if c.path == "" {
		return nil
	}

	v := viper.New()
	v.SetConfigFile(c.path)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("reread config %q: %w", c.path, err)
	}
	v.Set("terminal.host", host)
	if err := v.WriteConfig(); err != nil {
		return fmt.Errorf("write config %q: %w", c.path, err)
	}
	return nil
}
