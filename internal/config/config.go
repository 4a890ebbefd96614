package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"kal/internal/ics"
	appLog "kal/internal/log"
	"kal/internal/rules"
)

const (
	DefaultListen   = "127.0.0.1:8080"
	DefaultTimezone = "Europe/Paris"
	DefaultRefresh  = "0 * * * *"
)

// Mirror is one source feed published into one destination calendar.
type Mirror struct {
	// Name identifies the mirror in logs, the CLI and the API. Tokens are
	// stored under this name.
	Name string `yaml:"name" json:"name"`
	// Source is the ICS feed URL.
	Source string `yaml:"source" json:"-"`
	// CalendarID is the destination Google calendar id.
	CalendarID string `yaml:"calendar_id" json:"calendar_id"`
	// Timezone overrides the global timezone label sent with inserted events.
	Timezone string `yaml:"timezone,omitempty" json:"timezone,omitempty"`
	// Rules run in order over every future source event.
	Rules []rules.Rule `yaml:"rules,omitempty" json:"-"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address of `kal serve`.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone label attached to inserted events.
	Timezone string `yaml:"timezone" json:"timezone"`

	// RefreshCron is a standard 5-field cron spec for periodic syncs.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// DataDir holds the bbolt database (tokens and feed cache).
	DataDir string `yaml:"data_dir" json:"data_dir"`

	// Credentials is the path to the Google OAuth client JSON.
	Credentials string `yaml:"credentials" json:"credentials"`

	LogLevel  string `yaml:"log_level" json:"log_level"`
	LogFormat string `yaml:"log_format" json:"log_format"`

	// Concurrency bounds how many mirrors sync in parallel.
	Concurrency int `yaml:"concurrency" json:"concurrency"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on /api.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"-"`

	Mirrors []Mirror `yaml:"mirrors" json:"mirrors"`
}

// DefaultPath is ~/.config/kal/config.yaml, or ./config.yaml when the user
// config dir cannot be determined.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "config.yaml"
	}
	return filepath.Join(dir, "kal", "config.yaml")
}

func defaultDataDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "data"
	}
	return filepath.Join(dir, "kal")
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	c := &Config{}
	c.Normalize()
	return c
}

// Normalize fills in missing/zero values with defaults.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = DefaultListen
	}
	if c.Timezone == "" {
		c.Timezone = DefaultTimezone
	}
	if c.RefreshCron == "" {
		c.RefreshCron = DefaultRefresh
	}
	if c.DataDir == "" {
		c.DataDir = defaultDataDir()
	}
	if c.Credentials == "" {
		c.Credentials = filepath.Join(c.DataDir, "credentials.json")
	}
	if c.LogLevel == "" {
		c.LogLevel = string(appLog.LevelInfo)
	}
	if c.LogFormat == "" {
		c.LogFormat = string(appLog.FormatConsole)
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}
	if c.Mirrors == nil {
		c.Mirrors = []Mirror{}
	}
}

// Validate reports every configuration mistake it finds.
func (c *Config) Validate() error {
	var errs []error

	if _, err := cron.ParseStandard(c.RefreshCron); err != nil {
		errs = append(errs, fmt.Errorf("refresh %q: %w", c.RefreshCron, err))
	}
	if _, err := time.LoadLocation(c.Timezone); err != nil {
		errs = append(errs, fmt.Errorf("timezone %q: %w", c.Timezone, err))
	}
	if _, err := appLog.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if _, err := appLog.ParseFormat(c.LogFormat); err != nil {
		errs = append(errs, err)
	}
	if c.BasicAuth != nil && (c.BasicAuth.Username == "" || c.BasicAuth.Password == "") {
		errs = append(errs, errors.New("basic_auth needs both username and password"))
	}

	seen := make(map[string]bool, len(c.Mirrors))
	for i, m := range c.Mirrors {
		if m.Name == "" {
			errs = append(errs, fmt.Errorf("mirror #%d: name is empty", i+1))
			continue
		}
		if seen[m.Name] {
			errs = append(errs, fmt.Errorf("mirror %q: duplicate name", m.Name))
		}
		seen[m.Name] = true
		if err := ics.ValidateURL(m.Source); err != nil {
			errs = append(errs, fmt.Errorf("mirror %q: %w", m.Name, err))
		}
		if m.CalendarID == "" {
			errs = append(errs, fmt.Errorf("mirror %q: calendar_id is empty", m.Name))
		}
		if m.Timezone != "" {
			if _, err := time.LoadLocation(m.Timezone); err != nil {
				errs = append(errs, fmt.Errorf("mirror %q: timezone %q: %w", m.Name, m.Timezone, err))
			}
		}
		if err := rules.Validate(m.Rules); err != nil {
			errs = append(errs, fmt.Errorf("mirror %q: %w", m.Name, err))
		}
	}

	return errors.Join(errs...)
}

// Mirror returns the mirror called name.
func (c *Config) Mirror(name string) (Mirror, bool) {
	for _, m := range c.Mirrors {
		if m.Name == name {
			return m, true
		}
	}
	return Mirror{}, false
}

// MirrorTimezone is the zone label used for events inserted by m.
func (c *Config) MirrorTimezone(m Mirror) string {
	if m.Timezone != "" {
		return m.Timezone
	}
	return c.Timezone
}

// DBPath is the bbolt database location.
func (c *Config) DBPath() string {
	return filepath.Join(c.DataDir, "kal.db")
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms and returned.
//   - Otherwise the YAML is decoded, normalized and validated. Rules are
//     decoded strictly, so a malformed rule fails the load.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			appLog.Info("wrote default config", "path", path)
			return cfg, nil
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return &cfg, nil
}

// Save writes the given configuration to path atomically (temp file +
// rename) with 0600 permissions, creating the parent directory (0700).
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".kal-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}

	return os.Rename(tmpName, path)
}

func (c *Config) Save(path string) error {
	return Save(path, c)
}
