package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

// Placeholder defaults. A config whose required mail options still carry
// these values is treated as not yet set up and every cycle is skipped.
const (
	DefaultMailserverURL   = "mail.example.com"
	DefaultMailserverLogin = "login@example.com"
	DefaultMailserverPass  = "password"
	DefaultMailserverPort  = 110
)

// Config is the full application configuration, read-only once loaded.
type Config struct {
	// MailserverURL is the mailbox host to poll.
	MailserverURL string `mapstructure:"mailserver_url" yaml:"mailserver_url"`

	// MailserverLogin is the mailbox account name.
	MailserverLogin string `mapstructure:"mailserver_login" yaml:"mailserver_login"`

	// MailserverPass is the mailbox secret. May be left empty in the file
	// and supplied through the system keyring instead.
	MailserverPass string `mapstructure:"mailserver_pass" yaml:"mailserver_pass"`

	// MailserverPort is the mailbox port.
	MailserverPort int `mapstructure:"mailserver_port" yaml:"mailserver_port"`

	// MailserverTLS selects implicit TLS; when false STARTTLS is used.
	MailserverTLS bool `mapstructure:"mailserver_tls" yaml:"mailserver_tls"`

	// DefaultEmailCategory is assigned to every emitted content record.
	DefaultEmailCategory string `mapstructure:"default_email_category" yaml:"default_email_category"`

	// DefaultOwnerID is the fallback owner used when the sender address
	// does not resolve to a known owner.
	DefaultOwnerID int64 `mapstructure:"default_owner_id" yaml:"default_owner_id"`

	// GMTOffsetHours is the site's fixed offset from UTC, in hours.
	// Fractional offsets (e.g. 5.5) are allowed.
	GMTOffsetHours float64 `mapstructure:"gmt_offset_hours" yaml:"gmt_offset_hours"`

	// MinCheckInterval is the shortest allowed gap between two cycles
	// that perform network I/O.
	MinCheckInterval time.Duration `mapstructure:"min_check_interval" yaml:"min_check_interval"`

	// CheckInterval is how often the scheduler triggers a cycle.
	CheckInterval time.Duration `mapstructure:"check_interval" yaml:"check_interval"`

	// Debug bypasses the rate-limit guard.
	Debug bool `mapstructure:"debug" yaml:"debug"`

	// DBPath is the SQLite database location.
	DBPath string `mapstructure:"db_path" yaml:"db_path"`
}

// DefaultPath returns the default location of the configuration file,
// ~/.config/mailpost/config.yaml.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "config.yaml")
	}
	return filepath.Join(home, ".config", "mailpost", "config.yaml")
}

// DefaultDBPath returns the default SQLite database location.
func DefaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", "mailpost.db")
	}
	return filepath.Join(home, ".config", "mailpost", "mailpost.db")
}

func defaultConfig() *Config {
	return &Config{
		MailserverURL:    DefaultMailserverURL,
		MailserverLogin:  DefaultMailserverLogin,
		MailserverPass:   DefaultMailserverPass,
		MailserverPort:   DefaultMailserverPort,
		DefaultOwnerID:   1,
		MinCheckInterval: 5 * time.Minute,
		CheckInterval:    time.Hour,
		DBPath:           DefaultDBPath(),
	}
}

// Load reads configuration from the given YAML file path using Viper.
// If the file does not exist, it returns the placeholder defaults.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault("mailserver_url", DefaultMailserverURL)
	v.SetDefault("mailserver_login", DefaultMailserverLogin)
	v.SetDefault("mailserver_pass", DefaultMailserverPass)
	v.SetDefault("mailserver_port", DefaultMailserverPort)
	v.SetDefault("default_owner_id", 1)
	v.SetDefault("min_check_interval", "5m")
	v.SetDefault("check_interval", "1h")
	v.SetDefault("db_path", DefaultDBPath())

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(*os.PathError); ok {
			return defaultConfig(), nil
		}
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return defaultConfig(), nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	cfg := defaultConfig()
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}

// Save writes the configuration to a YAML file at path, creating parent
// directories if needed.
func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.Set("mailserver_url", cfg.MailserverURL)
	v.Set("mailserver_login", cfg.MailserverLogin)
	v.Set("mailserver_pass", cfg.MailserverPass)
	v.Set("mailserver_port", cfg.MailserverPort)
	v.Set("mailserver_tls", cfg.MailserverTLS)
	v.Set("default_email_category", cfg.DefaultEmailCategory)
	v.Set("default_owner_id", cfg.DefaultOwnerID)
	v.Set("gmt_offset_hours", cfg.GMTOffsetHours)
	v.Set("min_check_interval", cfg.MinCheckInterval.String())
	v.Set("check_interval", cfg.CheckInterval.String())
	v.Set("debug", cfg.Debug)
	v.Set("db_path", cfg.DBPath)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}

	return nil
}

// Incomplete reports the first required mail option that is unset or still
// a placeholder default. Port is not checked; 110 is a valid port.
func (c *Config) Incomplete() (string, bool) {
	required := []struct {
		name, value, placeholder string
	}{
		{"mailserver_url", c.MailserverURL, DefaultMailserverURL},
		{"mailserver_login", c.MailserverLogin, DefaultMailserverLogin},
		{"mailserver_pass", c.MailserverPass, DefaultMailserverPass},
	}
	for _, opt := range required {
		if opt.value == "" || opt.value == opt.placeholder {
			return opt.name, true
		}
	}
	return "", false
}

// SiteOffsetSeconds converts the configured site offset to whole seconds.
func (c *Config) SiteOffsetSeconds() int {
	return int(c.GMTOffsetHours * 3600)
}
