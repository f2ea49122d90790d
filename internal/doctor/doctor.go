// Package doctor runs preflight diagnostics: is the data directory
// usable, does the database open, are the API keys set, are the MCP
// service commands installed.
package doctor

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"

	"github.com/juniperhq/valet/internal/config"
	"github.com/juniperhq/valet/internal/store"
)

type Status string

const (
	StatusPass Status = "PASS"
	StatusWarn Status = "WARN"
	StatusFail Status = "FAIL"
)

type CheckResult struct {
	Name    string `json:"name"`
	Status  Status `json:"status"`
	Message string `json:"message"`
}

type Diagnosis struct {
	Timestamp time.Time     `json:"timestamp"`
	OS        string        `json:"os"`
	Arch      string        `json:"arch"`
	Go        string        `json:"go_version"`
	Results   []CheckResult `json:"results"`
}

// Healthy reports whether no check failed outright.
func (d Diagnosis) Healthy() bool {
	for _, r := range d.Results {
		if r.Status == StatusFail {
			return false
		}
	}
	return true
}

// Run executes all checks against the loaded config.
func Run(ctx context.Context, cfg config.Config) Diagnosis {
	d := Diagnosis{
		Timestamp: time.Now().UTC(),
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
		Go:        runtime.Version(),
	}
	checks := []func(context.Context, config.Config) CheckResult{
		checkHomeDir,
		checkDatabase,
		checkModelKey,
		checkLeafKeys,
		checkMCPCommands,
	}
	for _, check := range checks {
		d.Results = append(d.Results, check(ctx, cfg))
	}
	return d
}

// Print writes the diagnosis in the classic one-line-per-check format.
func (d Diagnosis) Print(w io.Writer) {
	fmt.Fprintf(w, "valet doctor (%s/%s, %s)\n\n", d.OS, d.Arch, d.Go)
	for _, r := range d.Results {
		fmt.Fprintf(w, "  [%s] %-14s %s\n", r.Status, r.Name, r.Message)
	}
	fmt.Fprintln(w)
}

func checkHomeDir(_ context.Context, cfg config.Config) CheckResult {
	probe := filepath.Join(cfg.HomeDir, ".doctor-probe")
	if err := os.WriteFile(probe, []byte("ok"), 0o644); err != nil {
		return CheckResult{Name: "home dir", Status: StatusFail,
			Message: fmt.Sprintf("%s is not writable: %v", cfg.HomeDir, err)}
	}
	os.Remove(probe)
	return CheckResult{Name: "home dir", Status: StatusPass, Message: cfg.HomeDir}
}

func checkDatabase(ctx context.Context, cfg config.Config) CheckResult {
	st, err := store.Open(cfg.DBPath())
	if err != nil {
		return CheckResult{Name: "database", Status: StatusFail,
			Message: fmt.Sprintf("cannot open %s: %v", cfg.DBPath(), err)}
	}
	defer st.Close()
	n, err := st.CountTasks(ctx)
	if err != nil {
		return CheckResult{Name: "database", Status: StatusFail,
			Message: fmt.Sprintf("query failed: %v", err)}
	}
	return CheckResult{Name: "database", Status: StatusPass,
		Message: fmt.Sprintf("%s (%d tasks)", cfg.DBPath(), n)}
}

func checkModelKey(_ context.Context, cfg config.Config) CheckResult {
	if cfg.LLM.APIKey == "" {
		return CheckResult{Name: "model api key", Status: StatusFail,
			Message: "not set; export DASHSCOPE_API_KEY or set llm.api_key"}
	}
	return CheckResult{Name: "model api key", Status: StatusPass,
		Message: fmt.Sprintf("set (model %s)", cfg.LLM.Model)}
}

func checkLeafKeys(_ context.Context, cfg config.Config) CheckResult {
	var missing []string
	for _, name := range []string{"amap", "serp"} {
		if cfg.APIKey(name) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return CheckResult{Name: "leaf api keys", Status: StatusWarn,
			Message: fmt.Sprintf("missing %v; weather/search tools will report ConfigurationError", missing)}
	}
	return CheckResult{Name: "leaf api keys", Status: StatusPass, Message: "amap, serp"}
}

func checkMCPCommands(_ context.Context, cfg config.Config) CheckResult {
	var missing []string
	enabled := 0
	for _, svc := range cfg.MCP.Services {
		if !svc.Enabled {
			continue
		}
		enabled++
		if _, err := exec.LookPath(svc.Command); err != nil {
			missing = append(missing, fmt.Sprintf("%s (%s)", svc.Name, svc.Command))
		}
	}
	if enabled == 0 {
		return CheckResult{Name: "mcp services", Status: StatusWarn, Message: "none enabled"}
	}
	if len(missing) > 0 {
		return CheckResult{Name: "mcp services", Status: StatusWarn,
			Message: fmt.Sprintf("command not found for %v", missing)}
	}
	return CheckResult{Name: "mcp services", Status: StatusPass,
		Message: fmt.Sprintf("%d enabled, commands found", enabled)}
}
