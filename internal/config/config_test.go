package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/codebysope/crypto-checker/internal/resource"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := loadDefaults()
	if err != nil {
		t.Fatalf("loadDefaults: %v", err)
	}
	if len(cfg.News.Sources) == 0 {
		t.Error("expected at least one default source")
	}
	if cfg.Upstream.BaseURL == "" {
		t.Error("expected upstream base_url to be set")
	}
	if err := validate(cfg); err != nil {
		t.Errorf("embedded defaults must validate: %v", err)
	}
}

func TestRefreshTable(t *testing.T) {
	cfg, err := loadDefaults()
	if err != nil {
		t.Fatalf("loadDefaults: %v", err)
	}

	tests := []struct {
		name         string
		key          resource.Key
		wantInterval time.Duration
		wantStale    time.Duration
	}{
		{"global", resource.NewKey(resource.KindGlobal, nil), 60 * time.Second, 30 * time.Second},
		{"top", resource.NewKey(resource.KindTop, map[string]string{"limit": "20"}), 30 * time.Second, 15 * time.Second},
		{"chart short", resource.NewKey(resource.KindChart, map[string]string{"id": "bitcoin", "window": "1h"}), 30 * time.Second, 15 * time.Second},
		{"chart long", resource.NewKey(resource.KindChart, map[string]string{"id": "bitcoin", "window": "1y"}), 60 * time.Second, 30 * time.Second},
		{"details", resource.NewKey(resource.KindDetails, map[string]string{"id": "bitcoin"}), 0, 60 * time.Second},
		{"news", resource.NewKey(resource.KindNews, nil), 5 * time.Minute, 5 * time.Minute},
	}
	for _, tt := range tests {
		if got := cfg.PollInterval(tt.key); got != tt.wantInterval {
			t.Errorf("%s: PollInterval = %v, want %v", tt.name, got, tt.wantInterval)
		}
		if got := cfg.StaleAfter(tt.key); got != tt.wantStale {
			t.Errorf("%s: StaleAfter = %v, want %v", tt.name, got, tt.wantStale)
		}
	}
}

func TestUpstreamDefaults(t *testing.T) {
	cfg := &Config{}
	if got := cfg.RequestTimeout(); got != 10*time.Second {
		t.Errorf("expected 10s timeout, got %v", got)
	}
	if got := cfg.MaxRetries(); got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}
	if got := cfg.BaseDelay(); got != time.Second {
		t.Errorf("expected 1s base delay, got %v", got)
	}
	if got := cfg.MaxDelay(); got != 30*time.Second {
		t.Errorf("expected 30s max delay, got %v", got)
	}

	cfg.Upstream.Timeout = "invalid"
	if got := cfg.RequestTimeout(); got != 10*time.Second {
		t.Errorf("expected fallback for invalid timeout, got %v", got)
	}
}

func TestEnabledSources(t *testing.T) {
	cfg := &Config{
		News: NewsConfig{Sources: []Source{
			{Name: "A", Enabled: true, Category: "Markets"},
			{Name: "B", Enabled: false, Category: "DeFi"},
			{Name: "C", Enabled: true, Category: "Markets"},
			{Name: "D", Enabled: true, Category: "Bitcoin"},
		}},
	}
	enabled := cfg.EnabledSources()
	if len(enabled) != 3 {
		t.Fatalf("expected 3 enabled sources, got %d", len(enabled))
	}
	names := cfg.SourceNames()
	if names[0] != "A" || names[1] != "C" || names[2] != "D" {
		t.Errorf("unexpected names: %v", names)
	}
	cats := cfg.Categories()
	if len(cats) != 2 || cats[0] != "Markets" || cats[1] != "Bitcoin" {
		t.Errorf("unexpected categories: %v", cats)
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")

	content := `log_level: warn
refresh:
  top:
    interval: 2m
news:
  sources:
    - name: Test
      type: rss
      url: https://example.com/feed
      enabled: true
preferences:
  showVolume: false
`
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.LogLevel != "warn" {
		t.Errorf("expected warn, got %s", cfg.LogLevel)
	}
	top := resource.NewKey(resource.KindTop, nil)
	if got := cfg.PollInterval(top); got != 2*time.Minute {
		t.Errorf("expected overridden top interval, got %v", got)
	}
	// stale_after for top was not set in the file
	if got := cfg.StaleAfter(top); got != 15*time.Second {
		t.Errorf("expected default top stale window, got %v", got)
	}
	if cfg.News.Sources[0].Name != "Test" {
		t.Errorf("expected first source name Test, got %s", cfg.News.Sources[0].Name)
	}
	if len(cfg.News.Sources) <= 1 {
		t.Errorf("expected default sources to be merged, got %d total", len(cfg.News.Sources))
	}
	if cfg.Preferences["showVolume"] != false {
		t.Errorf("expected user preference kept, got %v", cfg.Preferences["showVolume"])
	}
	if cfg.Preferences["timeFormat"] != "24h" {
		t.Errorf("expected default preference merged, got %v", cfg.Preferences["timeFormat"])
	}
}

func TestLoadNonexistentFallsBackToDefaults(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "sub", "config.yaml")

	cfg, err := Load(cfgPath)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.News.Sources) == 0 {
		t.Error("expected default sources when config doesn't exist")
	}
	if _, err := os.Stat(cfgPath); err != nil {
		t.Errorf("expected defaults written on first run: %v", err)
	}
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv(baseURLEnv, "https://pro-api.example.com/api/v3")
	cfg, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Upstream.BaseURL != "https://pro-api.example.com/api/v3" {
		t.Errorf("expected env override, got %s", cfg.Upstream.BaseURL)
	}
}

func TestStoragePath(t *testing.T) {
	cfg := &Config{Storage: StorageConfig{Path: "/tmp/state.db"}}
	if cfg.StoragePath() != "/tmp/state.db" {
		t.Errorf("expected explicit path, got %s", cfg.StoragePath())
	}
	cfg.Storage.Path = ""
	if filepath.Base(cfg.StoragePath()) != "state.db" {
		t.Errorf("expected default state.db, got %s", cfg.StoragePath())
	}
}

func TestMergeDefaultSources(t *testing.T) {
	cfg := &Config{News: NewsConfig{Sources: []Source{
		{Name: "Existing", Type: "rss", URL: "https://example.com/feed", Enabled: true},
		{Name: "Shared", Type: "rss", URL: "https://old.com/feed", Enabled: true},
	}}}
	defaults := &Config{News: NewsConfig{Sources: []Source{
		{Name: "Shared", Type: "atom", URL: "https://new.com/feed", Enabled: true},
		{Name: "NewSource", Type: "rss", URL: "https://new-source.com/feed", Enabled: true},
	}}}
	mergeDefaultSources(cfg, defaults)

	if len(cfg.News.Sources) != 3 {
		t.Fatalf("expected 3 sources after merge, got %d", len(cfg.News.Sources))
	}
	if cfg.News.Sources[0].Name != "Existing" {
		t.Errorf("expected first source Existing, got %s", cfg.News.Sources[0].Name)
	}
	if cfg.News.Sources[1].URL != "https://new.com/feed" {
		t.Errorf("expected Shared URL updated, got %s", cfg.News.Sources[1].URL)
	}
	if cfg.News.Sources[1].Type != "atom" {
		t.Errorf("expected Shared type updated to atom, got %s", cfg.News.Sources[1].Type)
	}
	if cfg.News.Sources[2].Name != "NewSource" {
		t.Errorf("expected NewSource appended, got %s", cfg.News.Sources[2].Name)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		source  Source
		wantErr bool
	}{
		{"missing name", Source{Type: "rss", URL: "https://example.com"}, true},
		{"missing url", Source{Name: "Test", Type: "rss"}, true},
		{"invalid type", Source{Name: "Test", Type: "json", URL: "https://example.com"}, true},
		{"file scheme", Source{Name: "Test", Type: "rss", URL: "file:///etc/passwd"}, true},
		{"https", Source{Name: "Test", Type: "rss", URL: "https://example.com/feed"}, false},
		{"http", Source{Name: "Test", Type: "atom", URL: "http://example.com/feed"}, false},
	}
	for _, tt := range tests {
		cfg := &Config{News: NewsConfig{Sources: []Source{tt.source}}}
		err := validate(cfg)
		if tt.wantErr && err == nil {
			t.Errorf("%s: expected error", tt.name)
		}
		if !tt.wantErr && err != nil {
			t.Errorf("%s: unexpected error: %v", tt.name, err)
		}
	}

	bad := &Config{Upstream: UpstreamConfig{BaseURL: "ftp://example.com"}}
	if err := validate(bad); err == nil {
		t.Error("expected error for non-http upstream")
	}
}
