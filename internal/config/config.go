package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	defaultListen          = "127.0.0.1:8080"
	defaultTimezone        = "Local"
	defaultWeekStart       = "monday"
	defaultMonthStart      = "sunday"
	defaultView            = "week"
	defaultLookaheadDays   = 60
	defaultDurationMinutes = 60
	defaultColor           = "#4285F4"
	defaultRefreshCron     = "*/30 * * * *"
	defaultCacheDir        = "./var/ics-cache"
	defaultLogLevel        = "info"
)

// SubscriptionConfig describes a remote ICS feed merged into the calendar.
type SubscriptionConfig struct {
	// ID tags imported events; it must be unique across subscriptions.
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

	// Timezone is the IANA zone in which calendar days are computed
	// (e.g. "Asia/Seoul"). "Local" uses the host zone.
	Timezone string `yaml:"timezone" json:"timezone"`

	// WeekStart is the first column of the week view: "monday" (default)
	// or "sunday".
	WeekStart string `yaml:"week_start" json:"week_start"`

	// MonthStart is the first column of the month grid: "sunday" (default)
	// or "monday".
	MonthStart string `yaml:"month_start" json:"month_start"`

	// DefaultView is "week" (default) or "month".
	DefaultView string `yaml:"default_view" json:"default_view"`

	// LookaheadDays extends the expansion window past the visible range's end.
	LookaheadDays int `yaml:"lookahead_days" json:"lookahead_days"`

	// DefaultDurationMinutes is added to the suggested start time to
	// produce the form's default end time.
	DefaultDurationMinutes int `yaml:"default_duration_minutes" json:"default_duration_minutes"`

	// DefaultColor is applied to events created without a color.
	DefaultColor string `yaml:"default_color" json:"default_color"`

	// RefreshCron is the cron schedule for re-fetching subscriptions.
	RefreshCron string `yaml:"refresh" json:"refresh"`

	// CacheDir holds per-subscription ICS bodies and HTTP cache metadata.
	CacheDir string `yaml:"cache_dir" json:"cache_dir"`

	// LogLevel is one of debug, info, warn, error.
	LogLevel string `yaml:"log_level" json:"log_level"`

	Subscriptions []SubscriptionConfig `yaml:"subscriptions" json:"subscriptions"`

	// BasicAuth, if set with both fields non-empty, protects every
	// endpoint except /health.
	BasicAuth *BasicAuthConfig `yaml:"basic_auth,omitempty" json:"basic_auth,omitempty"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:                 defaultListen,
		Timezone:               defaultTimezone,
		WeekStart:              defaultWeekStart,
		MonthStart:             defaultMonthStart,
		DefaultView:            defaultView,
		LookaheadDays:          defaultLookaheadDays,
		DefaultDurationMinutes: defaultDurationMinutes,
		DefaultColor:           defaultColor,
		RefreshCron:            defaultRefreshCron,
		CacheDir:               defaultCacheDir,
		LogLevel:               defaultLogLevel,
		Subscriptions:          []SubscriptionConfig{},
	}
}

// Normalize fills in missing or out-of-range values so that partially
// filled configs still behave.
func (c *Config) Normalize() {
	if c.Listen == "" {
		c.Listen = defaultListen
	}
	if c.Timezone == "" {
		c.Timezone = defaultTimezone
	}

	c.WeekStart = normalizeWeekday(c.WeekStart, defaultWeekStart)
	c.MonthStart = normalizeWeekday(c.MonthStart, defaultMonthStart)

	switch strings.ToLower(c.DefaultView) {
	case "week", "month":
		c.DefaultView = strings.ToLower(c.DefaultView)
	default:
		c.DefaultView = defaultView
	}

	// Zero lookahead is allowed; only negatives are reset.
	if c.LookaheadDays < 0 {
		c.LookaheadDays = defaultLookaheadDays
	}
	if c.DefaultDurationMinutes <= 0 {
		c.DefaultDurationMinutes = defaultDurationMinutes
	}
	if c.DefaultColor == "" {
		c.DefaultColor = defaultColor
	}
	if c.RefreshCron == "" {
		c.RefreshCron = defaultRefreshCron
	}
	if c.CacheDir == "" {
		c.CacheDir = defaultCacheDir
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
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
	if c.BasicAuth != nil && (c.BasicAuth.Username == "" || c.BasicAuth.Password == "") {
		c.BasicAuth = nil
	}
}

func normalizeWeekday(v, fallback string) string {
	switch v = strings.ToLower(strings.TrimSpace(v)); v {
	case "monday", "sunday":
		return v
	default:
		return fallback
	}
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist, a default config is written with 0600
//     perms (creating the parent directory) and returned.
//   - Otherwise the YAML is unmarshaled over the defaults and normalized.
func Load(path string) (*Config, error) {
	cfg, err := read(path)
	if errors.Is(err, fs.ErrNotExist) {
		cfg = DefaultConfig()
		if err := Save(path, cfg); err != nil {
			// Return cfg alongside the error so the caller can still run.
			return cfg, err
		}
		return cfg, nil
	}
	return cfg, err
}

// Read is Load without the first-run write: a missing file yields the
// defaults and nothing is created on disk.
func Read(path string) (*Config, error) {
	cfg, err := read(path)
	if errors.Is(err, fs.ErrNotExist) {
		return DefaultConfig(), nil
	}
	return cfg, err
}

func read(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return cfg, nil
}

// Save writes cfg to path atomically (temp file + rename) with 0600
// permissions, creating the parent directory with 0700 if needed.
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

	tmp, err := os.CreateTemp(dir, ".weekcal-config-*.tmp")
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

// Save is a convenience method delegating to the package-level Save.
func (c *Config) Save(path string) error {
	return Save(path, c)
}

// Location resolves Timezone. "Local" and empty map to time.Local; an
// unknown zone is returned as an error together with time.Local.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" || strings.EqualFold(c.Timezone, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local, err
	}
	return loc, nil
}
