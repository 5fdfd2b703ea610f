package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// SubscriptionConfig describes one external ICS calendar imported into the
// planner (holidays, a shared team calendar, ...).
type SubscriptionConfig struct {
	// ID is an internal identifier used as the event source key.
	ID string `yaml:"id" json:"id"`
	// Name is a human-friendly label.
	Name string `yaml:"name" json:"name"`
	// URL is the ICS endpoint.
	URL string `yaml:"url" json:"url"`
}

// BasicAuthConfig holds HTTP Basic Auth credentials for the API.
type BasicAuthConfig struct {
	Username string `yaml:"username" json:"username"`
	Password string `yaml:"password" json:"password"`
}

// Config is the top-level application configuration.
type Config struct {
	// Listen is the HTTP listen address for the API.
	Listen string `yaml:"listen" json:"listen"`

	// Timezone is the IANA zone "today" is computed in (e.g. "Asia/Seoul").
	Timezone string `yaml:"timezone" json:"timezone"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`
	// LogFile, if set, sends logs to a rotating file instead of stderr.
	LogFile string `yaml:"log_file,omitempty" json:"log_file,omitempty"`

	// RefreshCron is the cron schedule for re-importing subscriptions.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// HorizonDays is how far ahead imported recurring events are expanded
	// by default when listing an agenda.
	HorizonDays int `yaml:"horizon_days" json:"horizon_days"`

	// DefaultEventHour is the start hour used when a phrase resolves to a
	// date but no time of day.
	DefaultEventHour int `yaml:"default_event_hour" json:"default_event_hour"`
	// DefaultEventMinutes is the event length when none is given.
	DefaultEventMinutes int `yaml:"default_event_minutes" json:"default_event_minutes"`

	// CacheDir holds the on-disk ICS fetch cache.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// ResolveCacheSize bounds the in-memory phrase resolution cache.
	ResolveCacheSize int `yaml:"resolve_cache_size" json:"resolve_cache_size"`

	Subscriptions []SubscriptionConfig `yaml:"subscriptions" json:"subscriptions"`

	// BasicAuth, if non-nil, enables HTTP Basic Authentication on all endpoints
	// except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

const (
	defaultListen       = "127.0.0.1:8080"
	defaultTimezone     = "Local"
	defaultLogLevel     = "info"
	defaultRefreshCron  = "*/30 * * * *"
	defaultHorizonDays  = 30
	defaultEventHour    = 9
	defaultEventMinutes = 60
	defaultCacheDir     = "./var/ics-cache"
	defaultResolveCache = 512
)

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:              defaultListen,
		Timezone:            defaultTimezone,
		LogLevel:            defaultLogLevel,
		RefreshCron:         defaultRefreshCron,
		HorizonDays:         defaultHorizonDays,
		DefaultEventHour:    defaultEventHour,
		DefaultEventMinutes: defaultEventMinutes,
		CacheDir:            defaultCacheDir,
		ResolveCacheSize:    defaultResolveCache,
		Subscriptions:       []SubscriptionConfig{},
		BasicAuth:           nil,
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
		// ok
	default:
		c.LogLevel = defaultLogLevel
	}
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefreshCron
	}
	if c.HorizonDays <= 0 {
		c.HorizonDays = defaultHorizonDays
	}
	if c.DefaultEventHour < 0 || c.DefaultEventHour > 23 {
		c.DefaultEventHour = defaultEventHour
	}
	if c.DefaultEventMinutes <= 0 {
		c.DefaultEventMinutes = defaultEventMinutes
	}
	if c.CacheDir == "" {
		c.CacheDir = defaultCacheDir
	}
	if c.ResolveCacheSize <= 0 {
		c.ResolveCacheSize = defaultResolveCache
	}
	if c.Subscriptions == nil {
		c.Subscriptions = []SubscriptionConfig{}
	}
	for i := range c.Subscriptions {
		s := &c.Subscriptions[i]
		if s.ID == "" {
			if s.Name != "" {
				s.ID = s.Name
			} else {
				s.ID = s.URL
			}
		}
	}
}

var errEmptyPath = errors.New("config: path is empty")

// Load reads the YAML file at path and normalizes it. A missing file is
// not an error: the defaults are written to path (0600) and returned, along
// with any error from writing them.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errEmptyPath
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg := DefaultConfig()
		return cfg, Save(path, cfg)
	}
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.Normalize()
	return cfg, nil
}

// Save normalizes cfg and writes it to path through a temp file and rename,
// creating the parent directory (0700) if needed.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errEmptyPath
	}
	if cfg == nil {
		return errors.New("config: nil config")
	}
	cfg.Normalize()

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return writeAtomic(path, data)
}

func writeAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(dir, ".baekon-config-*.tmp")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err == nil {
		err = tmp.Sync()
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}
	if err = os.Chmod(tmp.Name(), 0o600); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Save is a convenience method on Config that delegates to the package-level
// Save function.
func (c *Config) Save(path string) error {
	return Save(path, c)
}

// Location resolves Timezone. "Local" and unknown names map to time.Local;
// the second result reports whether the name was understood.
func (c *Config) Location() (*time.Location, bool) {
	if c.Timezone == "" || c.Timezone == defaultTimezone {
		return time.Local, true
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local, false
	}
	return loc, true
}
