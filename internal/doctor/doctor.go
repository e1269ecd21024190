// Package doctor runs runtime readiness diagnostics for config, audio,
// backend, and the speech recognizer.
package doctor

import (
	"context"
	"fmt"
	"net/http"
	"os/exec"
	"strings"
	"time"

	"github.com/nfarrow/vitalink/internal/audio"
	"github.com/nfarrow/vitalink/internal/config"
)

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Run executes environment/config/runtime checks for a loaded config.
func Run(ctx context.Context, cfg config.Loaded) Report {
	checks := []Check{{
		Name:    "config",
		Pass:    true,
		Message: fmt.Sprintf("loaded %q", cfg.Path),
	}}

	for _, w := range cfg.Warnings {
		checks = append(checks, Check{Name: "config", Pass: true, Message: w.Message})
	}

	checks = append(checks, checkBackend(ctx, cfg.Config))
	checks = append(checks, checkRecognizer(cfg.Config))
	checks = append(checks, checkMicrophone(ctx, cfg.Config))
	checks = append(checks, checkSpeaker(cfg.Config))

	return Report{Checks: checks}
}

// checkBackend probes the chat/scan service with a short GET.
func checkBackend(ctx context.Context, cfg config.Config) Check {
	url := strings.TrimRight(cfg.Backend.URL, "/") + "/auth/status"
	reqCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, url, nil)
	if err != nil {
		return Check{Name: "backend", Pass: false, Message: err.Error()}
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return Check{Name: "backend", Pass: false, Message: fmt.Sprintf("request failed: %v", err)}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 500 {
		return Check{Name: "backend", Pass: false, Message: fmt.Sprintf("HTTP %d from %s", resp.StatusCode, url)}
	}
	return Check{Name: "backend", Pass: true, Message: fmt.Sprintf("reachable at %s", cfg.Backend.URL)}
}

func checkRecognizer(cfg config.Config) Check {
	if strings.TrimSpace(cfg.Recognizer.URL) == "" {
		return Check{Name: "recognizer", Pass: false, Message: "recognizer.url is not set; voice mode stays disabled"}
	}
	if strings.TrimSpace(cfg.Recognizer.APIKey) == "" {
		return Check{Name: "recognizer", Pass: true, Message: "configured without an API key"}
	}
	return Check{Name: "recognizer", Pass: true, Message: fmt.Sprintf("configured at %s", cfg.Recognizer.URL)}
}

func checkMicrophone(ctx context.Context, cfg config.Config) Check {
	if err := audio.Probe(ctx, cfg.Audio.Input); err != nil {
		return Check{Name: "audio.device", Pass: false, Message: err.Error()}
	}
	return Check{Name: "audio.device", Pass: true, Message: fmt.Sprintf("input %q is usable", cfg.Audio.Input)}
}

func checkSpeaker(cfg config.Config) Check {
	if len(cfg.Speaker.Argv) == 0 {
		return Check{Name: "speaker", Pass: true, Message: "speaker.command not set; replies stay silent"}
	}
	bin := cfg.Speaker.Argv[0]
	path, err := exec.LookPath(bin)
	if err != nil {
		return Check{Name: "speaker", Pass: false, Message: fmt.Sprintf("binary not found in PATH: %s", bin)}
	}
	return Check{Name: "speaker", Pass: true, Message: fmt.Sprintf("found at %s", path)}
}
