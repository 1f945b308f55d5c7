package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Pool.Size != 5 || cfg.Crawl.BatchWidth != 3 {
		t.Fatalf("unexpected defaults: pool=%d batch=%d", cfg.Pool.Size, cfg.Crawl.BatchWidth)
	}
	if cfg.Retry.Navigation.MaxAttempts != 3 || cfg.Retry.Navigation.InitialDelay != time.Second {
		t.Fatalf("unexpected navigation retry defaults: %+v", cfg.Retry.Navigation)
	}
	if cfg.Storage.KeepaliveInterval != time.Minute {
		t.Fatalf("unexpected keepalive interval %s", cfg.Storage.KeepaliveInterval)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "crawler.yaml")
	yaml := `
pool:
  size: 2
crawl:
  batch_width: 4
  navigation_timeout: 45s
retry:
  connect:
    max_attempts: 7
    initial_delay: 500ms
storage:
  driver: sqlite
  dsn: file:jobs.db
site:
  name: demo
  base_url: https://jobs.example.com
  regions:
    - name: Oslo
      path: /jobs/oslo
    - name: Bergen
      path: /jobs/bergen
  selectors:
    entry: li.job
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("JOBCRAWLER_POOL_SIZE", "9")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.Pool.Size != 9 {
		t.Fatalf("expected env to override pool size, got %d", cfg.Pool.Size)
	}
	if cfg.Crawl.BatchWidth != 4 || cfg.Crawl.NavigationTimeout != 45*time.Second {
		t.Fatalf("unexpected crawl config %+v", cfg.Crawl)
	}
	if cfg.Retry.Connect.MaxAttempts != 7 || cfg.Retry.Connect.InitialDelay != 500*time.Millisecond {
		t.Fatalf("unexpected connect policy %+v", cfg.Retry.Connect)
	}
	if len(cfg.Site.Regions) != 2 || cfg.Site.Regions[1].Name != "Bergen" {
		t.Fatalf("unexpected regions %+v", cfg.Site.Regions)
	}
	if cfg.Storage.Driver != "sqlite" {
		t.Fatalf("unexpected storage driver %q", cfg.Storage.Driver)
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cfg := &Config{
		Pool:    PoolConfig{Size: 0},
		Crawl:   CrawlConfig{BatchWidth: 1, EntryWorkers: 1},
		Storage: StorageConfig{Driver: "mysql"},
		Browser: BrowserConfig{Driver: "chromedp"},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected validation error")
	}
}
