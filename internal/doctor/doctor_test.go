package doctor

import (
	"context"
	"strings"
	"testing"

	"github.com/juniperhq/valet/internal/config"
)

func testConfig(t *testing.T) config.Config {
	t.Helper()
	home := t.TempDir()
	cfg, err := config.Load(home)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	return cfg
}

func TestRunHealthyWithKeys(t *testing.T) {
	cfg := testConfig(t)
	cfg.LLM.APIKey = "sk-test"
	cfg.APIKeys = map[string]string{"amap": "k1", "serp": "k2"}
	cfg.MCP.Services = nil

	d := Run(context.Background(), cfg)
	if !d.Healthy() {
		t.Fatalf("expected healthy diagnosis, got %+v", d.Results)
	}
	for _, r := range d.Results {
		if r.Status == StatusFail {
			t.Errorf("check %q failed: %s", r.Name, r.Message)
		}
	}
}

func TestRunMissingModelKeyFails(t *testing.T) {
	cfg := testConfig(t)
	cfg.LLM.APIKey = ""
	t.Setenv("DASHSCOPE_API_KEY", "")

	d := Run(context.Background(), cfg)
	if d.Healthy() {
		t.Fatal("expected unhealthy diagnosis without a model key")
	}
	var found bool
	for _, r := range d.Results {
		if r.Name == "model api key" {
			found = true
			if r.Status != StatusFail {
				t.Errorf("model api key status = %s, want FAIL", r.Status)
			}
		}
	}
	if !found {
		t.Fatal("no model api key check in results")
	}
}

func TestMissingLeafKeysWarn(t *testing.T) {
	cfg := testConfig(t)
	cfg.APIKeys = nil
	t.Setenv("AMAP_API_KEY", "")
	t.Setenv("SERP_API_KEY", "")

	r := checkLeafKeys(context.Background(), cfg)
	if r.Status != StatusWarn {
		t.Fatalf("status = %s, want WARN", r.Status)
	}
	if !strings.Contains(r.Message, "amap") || !strings.Contains(r.Message, "serp") {
		t.Errorf("message should name missing keys, got %q", r.Message)
	}
}

func TestMissingServiceCommandWarns(t *testing.T) {
	cfg := testConfig(t)
	cfg.MCP.Services = []config.ServiceConfig{{
		Name:    "ghost",
		Command: "definitely-not-a-real-binary-9f2c",
		Enabled: true,
	}}

	r := checkMCPCommands(context.Background(), cfg)
	if r.Status != StatusWarn {
		t.Fatalf("status = %s, want WARN", r.Status)
	}
	if !strings.Contains(r.Message, "ghost") {
		t.Errorf("message should name the service, got %q", r.Message)
	}
}

func TestPrintRendering(t *testing.T) {
	d := Diagnosis{
		OS: "linux", Arch: "amd64", Go: "go1.24",
		Results: []CheckResult{{Name: "database", Status: StatusPass, Message: "ok"}},
	}
	var sb strings.Builder
	d.Print(&sb)
	out := sb.String()
	if !strings.Contains(out, "[PASS]") || !strings.Contains(out, "database") {
		t.Errorf("unexpected output: %q", out)
	}
}
