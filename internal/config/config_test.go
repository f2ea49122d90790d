package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadWritesDefaultOnFirstRun(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, err := os.Stat(ConfigPath(dir)); err != nil {
		t.Fatalf("default config.yaml not written: %v", err)
	}
	if cfg.Dispatch.MaxRetries != 2 {
		t.Errorf("default max_retries = %d, want 2", cfg.Dispatch.MaxRetries)
	}
	if cfg.Dispatch.Workers != 4 {
		t.Errorf("default workers = %d, want 4", cfg.Dispatch.Workers)
	}
	if cfg.LLM.BaseURL == "" || cfg.LLM.Model == "" {
		t.Error("LLM defaults must be populated")
	}
}

func TestLoadParsesFileAndNormalizes(t *testing.T) {
	dir := t.TempDir()
	yaml := `
bind_addr: "127.0.0.1:9000"
dispatch:
  workers: 2
  max_retries: 1
mcp:
  services:
    - name: amap-maps
      command: npx
      args: ["-y", "@amap/amap-maps-mcp-server"]
      enabled: true
      timeout_seconds: 5
`
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BindAddr != "127.0.0.1:9000" {
		t.Errorf("bind_addr = %q", cfg.BindAddr)
	}
	if cfg.Dispatch.Workers != 2 || cfg.Dispatch.MaxRetries != 1 {
		t.Errorf("dispatch = %+v", cfg.Dispatch)
	}
	// Unset fields fall back to defaults.
	if cfg.Dispatch.RetryBackoffMS != 500 {
		t.Errorf("retry_backoff_ms = %d, want 500", cfg.Dispatch.RetryBackoffMS)
	}
	svc, ok := cfg.Service("amap-maps")
	if !ok || !svc.Enabled || svc.TimeoutSeconds != 5 {
		t.Errorf("service = %+v, ok=%v", svc, ok)
	}
	if _, ok := cfg.Service("nope"); ok {
		t.Error("unknown service must not resolve")
	}
}

func TestAPIKeyEnvOverrideAtLoad(t *testing.T) {
	dir := t.TempDir()
	yaml := `
api_keys:
  amap: from-file
  serp: from-file
`
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("AMAP_API_KEY", "from-env")
	t.Setenv("SERP_API_KEY", "")

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := cfg.APIKey("amap"); got != "from-env" {
		t.Errorf("APIKey(amap) = %q, want env value", got)
	}
	if got := cfg.APIKey("serp"); got != "from-file" {
		t.Errorf("APIKey(serp) = %q, want file value", got)
	}
	if got := cfg.APIKey("unknown"); got != "" {
		t.Errorf("unknown key = %q, want empty", got)
	}

	// The struct is sealed at load: later env changes are invisible.
	t.Setenv("AMAP_API_KEY", "changed-after-load")
	if got := cfg.APIKey("amap"); got != "from-env" {
		t.Errorf("APIKey(amap) after env change = %q, want load-time value", got)
	}
}
