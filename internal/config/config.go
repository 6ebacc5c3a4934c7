package config

import (
	"embed"
	"fmt"
	"maps"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"

	"github.com/codebysope/crypto-checker/internal/resource"
)

//go:embed default_config.yaml
var defaultConfigFS embed.FS

const (
	appName = "crypto-checker"

	baseURLEnv  = "CRYPTO_CHECKER_BASE_URL"
	logLevelEnv = "CRYPTO_CHECKER_LOG_LEVEL"
)

// Source is one news feed.
type Source struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	URL      string `yaml:"url"`
	Language string `yaml:"language,omitempty"`
	Category string `yaml:"category,omitempty"`
	Enabled  bool   `yaml:"enabled"`
}

// UpstreamConfig controls the market data provider and the retry policy.
type UpstreamConfig struct {
	BaseURL    string `yaml:"base_url"`
	Timeout    string `yaml:"timeout"`
	MaxRetries int    `yaml:"max_retries"`
	BaseDelay  string `yaml:"base_delay"`
	MaxDelay   string `yaml:"max_delay"`
}

// RefreshRule pairs a poll interval with a staleness window for one resource kind.
// An empty or zero interval means the resource is fetched on demand only.
type RefreshRule struct {
	Interval   string `yaml:"interval"`
	StaleAfter string `yaml:"stale_after"`
}

// RefreshConfig is the per-kind refresh table.
type RefreshConfig struct {
	Global     RefreshRule `yaml:"global"`
	Top        RefreshRule `yaml:"top"`
	Chart      RefreshRule `yaml:"chart"`
	ChartShort RefreshRule `yaml:"chart_short"`
	Details    RefreshRule `yaml:"details"`
	News       RefreshRule `yaml:"news"`
	// ShortWindows lists chart windows that use ChartShort.
	ShortWindows []string `yaml:"short_windows"`
}

type NewsConfig struct {
	PageSize int      `yaml:"page_size"`
	Sources  []Source `yaml:"sources"`
}

type StorageConfig struct {
	Path string `yaml:"path,omitempty"`
}

type Config struct {
	LogLevel    string         `yaml:"log_level"`
	Upstream    UpstreamConfig `yaml:"upstream"`
	Refresh     RefreshConfig  `yaml:"refresh"`
	News        NewsConfig     `yaml:"news"`
	Preferences map[string]any `yaml:"preferences"`
	Storage     StorageConfig  `yaml:"storage"`
}

// RequestTimeout bounds a single fetch attempt.
func (c *Config) RequestTimeout() time.Duration {
	return parseDuration(c.Upstream.Timeout, 10*time.Second)
}

// MaxRetries is the total number of attempts per fetch, defaulting to 3.
func (c *Config) MaxRetries() int {
	if c.Upstream.MaxRetries <= 0 {
		return 3
	}
	return c.Upstream.MaxRetries
}

func (c *Config) BaseDelay() time.Duration {
	return parseDuration(c.Upstream.BaseDelay, time.Second)
}

func (c *Config) MaxDelay() time.Duration {
	return parseDuration(c.Upstream.MaxDelay, 30*time.Second)
}

// PollInterval returns how often key should be re-fetched while subscribed.
func (c *Config) PollInterval(key resource.Key) time.Duration {
	return parseDuration(c.rule(key).Interval, 0)
}

// StaleAfter returns how long a fetched value of key stays fresh.
func (c *Config) StaleAfter(key resource.Key) time.Duration {
	return parseDuration(c.rule(key).StaleAfter, 30*time.Second)
}

func (c *Config) rule(key resource.Key) RefreshRule {
	switch key.Kind() {
	case resource.KindGlobal:
		return c.Refresh.Global
	case resource.KindTop:
		return c.Refresh.Top
	case resource.KindChart:
		if slices.Contains(c.Refresh.ShortWindows, key.Param("window")) {
			return c.Refresh.ChartShort
		}
		return c.Refresh.Chart
	case resource.KindDetails:
		return c.Refresh.Details
	case resource.KindNews:
		return c.Refresh.News
	default:
		return RefreshRule{}
	}
}

// PageSize returns the news page size, defaulting to 20.
func (c *Config) PageSize() int {
	if c.News.PageSize <= 0 {
		return 20
	}
	return c.News.PageSize
}

func (c *Config) EnabledSources() []Source {
	var out []Source
	for _, s := range c.News.Sources {
		if s.Enabled {
			out = append(out, s)
		}
	}
	return out
}

func (c *Config) SourceNames() []string {
	var names []string
	for _, s := range c.EnabledSources() {
		names = append(names, s.Name)
	}
	return names
}

// Categories returns the distinct categories of enabled sources in config order.
func (c *Config) Categories() []string {
	var out []string
	for _, s := range c.EnabledSources() {
		if s.Category != "" && !slices.Contains(out, s.Category) {
			out = append(out, s.Category)
		}
	}
	return out
}

// StoragePath resolves the durable store location.
func (c *Config) StoragePath() string {
	if c.Storage.Path != "" {
		return c.Storage.Path
	}
	return filepath.Join(xdg.DataHome, appName, "state.db")
}

// DefaultPreferences returns a copy of the configured preference defaults.
func (c *Config) DefaultPreferences() map[string]any {
	return maps.Clone(c.Preferences)
}

func DefaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, appName, "config.yaml")
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil || d < 0 {
		return fallback
	}
	return d
}

func loadDefaults() (*Config, error) {
	data, err := defaultConfigFS.ReadFile("default_config.yaml")
	if err != nil {
		return nil, fmt.Errorf("reading embedded config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded config: %w", err)
	}
	return &cfg, nil
}

// Load reads the config at path (or the default location), filling anything
// the file leaves out from the embedded defaults.
func Load(path string) (*Config, error) {
	defaults, err := loadDefaults()
	if err != nil {
		return nil, err
	}

	if path == "" {
		path = DefaultConfigPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Non-fatal: just use embedded defaults
			_ = writeDefaults(path)
			defaults.applyEnvOverrides()
			return defaults, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	mergeDefaults(&cfg, defaults)
	mergeDefaultSources(&cfg, defaults)
	cfg.applyEnvOverrides()

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(baseURLEnv); v != "" {
		c.Upstream.BaseURL = v
	}
	if v := os.Getenv(logLevelEnv); v != "" {
		c.LogLevel = v
	}
}

func mergeDefaults(cfg, defaults *Config) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaults.LogLevel
	}

	if cfg.Upstream.BaseURL == "" {
		cfg.Upstream.BaseURL = defaults.Upstream.BaseURL
	}
	if cfg.Upstream.Timeout == "" {
		cfg.Upstream.Timeout = defaults.Upstream.Timeout
	}
	if cfg.Upstream.MaxRetries == 0 {
		cfg.Upstream.MaxRetries = defaults.Upstream.MaxRetries
	}
	if cfg.Upstream.BaseDelay == "" {
		cfg.Upstream.BaseDelay = defaults.Upstream.BaseDelay
	}
	if cfg.Upstream.MaxDelay == "" {
		cfg.Upstream.MaxDelay = defaults.Upstream.MaxDelay
	}

	mergeRule(&cfg.Refresh.Global, defaults.Refresh.Global)
	mergeRule(&cfg.Refresh.Top, defaults.Refresh.Top)
	mergeRule(&cfg.Refresh.Chart, defaults.Refresh.Chart)
	mergeRule(&cfg.Refresh.ChartShort, defaults.Refresh.ChartShort)
	mergeRule(&cfg.Refresh.Details, defaults.Refresh.Details)
	mergeRule(&cfg.Refresh.News, defaults.Refresh.News)
	if len(cfg.Refresh.ShortWindows) == 0 {
		cfg.Refresh.ShortWindows = defaults.Refresh.ShortWindows
	}

	if cfg.News.PageSize == 0 {
		cfg.News.PageSize = defaults.News.PageSize
	}

	// New preference keys get their default for previously written configs.
	if cfg.Preferences == nil {
		cfg.Preferences = map[string]any{}
	}
	for k, v := range defaults.Preferences {
		if _, ok := cfg.Preferences[k]; !ok {
			cfg.Preferences[k] = v
		}
	}
}

func mergeRule(rule *RefreshRule, def RefreshRule) {
	if rule.Interval == "" {
		rule.Interval = def.Interval
	}
	if rule.StaleAfter == "" {
		rule.StaleAfter = def.StaleAfter
	}
}

// mergeDefaultSources keeps user sources first, refreshes the type and URL of
// sources that share a name with a default, and appends new defaults.
func mergeDefaultSources(cfg, defaults *Config) {
	index := make(map[string]int, len(cfg.News.Sources))
	for i, s := range cfg.News.Sources {
		index[s.Name] = i
	}
	for _, def := range defaults.News.Sources {
		if i, ok := index[def.Name]; ok {
			cfg.News.Sources[i].URL = def.URL
			cfg.News.Sources[i].Type = def.Type
			continue
		}
		cfg.News.Sources = append(cfg.News.Sources, def)
	}
}

func writeDefaults(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, _ := defaultConfigFS.ReadFile("default_config.yaml")
	return os.WriteFile(path, data, 0o644)
}

func validate(cfg *Config) error {
	if cfg.Upstream.BaseURL != "" {
		if err := validateURL(cfg.Upstream.BaseURL); err != nil {
			return fmt.Errorf("upstream: %w", err)
		}
	}
	validTypes := map[string]bool{"rss": true, "atom": true}
	for i, s := range cfg.News.Sources {
		if s.Name == "" {
			return fmt.Errorf("source %d: name is required", i)
		}
		if s.URL == "" {
			return fmt.Errorf("source %q: url is required", s.Name)
		}
		if err := validateURL(s.URL); err != nil {
			return fmt.Errorf("source %q: %w", s.Name, err)
		}
		if !validTypes[s.Type] {
			return fmt.Errorf("source %q: unknown type %q (valid: rss, atom)", s.Name, s.Type)
		}
	}
	return nil
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url scheme must be http or https, got %q", u.Scheme)
	}
	return nil
}
