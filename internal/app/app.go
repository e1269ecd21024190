// Package app wires configuration, logging, the interaction session, and the
// IPC surface behind the vitalink CLI.
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/nfarrow/vitalink/internal/audio"
	"github.com/nfarrow/vitalink/internal/cli"
	"github.com/nfarrow/vitalink/internal/config"
	"github.com/nfarrow/vitalink/internal/doctor"
	"github.com/nfarrow/vitalink/internal/ipc"
	"github.com/nfarrow/vitalink/internal/logging"
	"github.com/nfarrow/vitalink/internal/record"
	"github.com/nfarrow/vitalink/internal/version"
)

const (
	forwardTimeout = 220 * time.Millisecond

	// A scan waits out the full analysis deadline plus persistence.
	scanTimeout = 135 * time.Second

	// Chat answers are bounded by the backend client's own timeout.
	sayTimeout = 35 * time.Second
)

type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := Runner{Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText("vitalink"))
		return 2
	}

	if parsed.ShowHelp {
		fmt.Fprint(r.Stdout, cli.HelpText("vitalink"))
		return 0
	}

	if parsed.Command == cli.CommandVersion {
		fmt.Fprintln(r.Stdout, version.String())
		return 0
	}

	level := slog.LevelInfo
	if parsed.Debug {
		level = slog.LevelDebug
	}
	logRuntime, err := logging.New(level)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: setup logging: %v\n", err)
		return 1
	}
	defer func() { _ = logRuntime.Close() }()

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}

	cfgLoaded, err := config.Load(parsed.ConfigPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("load config failed", "error", err.Error())
		return 1
	}
	for _, w := range cfgLoaded.Warnings {
		fmt.Fprintf(r.Stderr, "warning: %s\n", w.Message)
		logger.Warn("config warning", "message", w.Message)
	}

	logger.Info("command start",
		"command", parsed.Command,
		"config", cfgLoaded.Path,
		"log", logRuntime.Path,
	)

	switch parsed.Command {
	case cli.CommandDoctor:
		report := doctor.Run(ctx, cfgLoaded)
		fmt.Fprintln(r.Stdout, report.String())
		if report.OK() {
			return 0
		}
		return 1
	case cli.CommandDevices:
		return r.commandDevices(ctx)
	case cli.CommandStatus:
		return r.commandStatus(ctx)
	case cli.CommandEnable:
		return r.forwardOrFail(ctx, ipc.Request{Command: "enable"}, forwardTimeout)
	case cli.CommandDisable:
		return r.forwardOrFail(ctx, ipc.Request{Command: "disable"}, forwardTimeout)
	case cli.CommandSay:
		return r.forwardOrFail(ctx, ipc.Request{Command: "say", Message: parsed.Arg}, sayTimeout)
	case cli.CommandScan:
		return r.commandScan(ctx, parsed.Arg)
	case cli.CommandHistory:
		return r.commandHistory(ctx)
	case cli.CommandRun:
		return r.commandRun(ctx, cfgLoaded.Config, logger)
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", parsed.Command)
		return 2
	}
}

func (r Runner) commandDevices(ctx context.Context) int {
	devices, err := audio.ListDevices(ctx)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if len(devices) == 0 {
		fmt.Fprintln(r.Stdout, "no audio devices found")
		return 1
	}

	for _, device := range devices {
		defaultMark := " "
		if device.Default {
			defaultMark = "*"
		}
		availability := "yes"
		if !device.Available {
			availability = "no"
		}
		muted := "no"
		if device.Muted {
			muted = "yes"
		}
		fmt.Fprintf(
			r.Stdout,
			"%s id=%s | description=%q | state=%s | available=%s | muted=%s\n",
			defaultMark,
			device.ID,
			device.Description,
			device.State,
			availability,
			muted,
		)
	}

	return 0
}

func (r Runner) commandStatus(ctx context.Context) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintln(r.Stdout, "not running")
		return 0
	}

	resp, handled, err := tryForward(ctx, socketPath, ipc.Request{Command: "status"}, forwardTimeout)
	if handled {
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
		if resp.State == "" {
			resp.State = "idle"
		}
		fmt.Fprintf(r.Stdout, "%s (%s)\n", resp.State, resp.Message)
		return 0
	}

	fmt.Fprintln(r.Stdout, "not running")
	return 0
}

func (r Runner) commandScan(ctx context.Context, path string) int {
	abs, err := filepath.Abs(path)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if _, err := os.Stat(abs); err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	code := r.forwardOrFailFn(ctx, ipc.Request{Command: "scan", Path: abs}, scanTimeout, func(resp ipc.Response) {
		if resp.Message != "" {
			fmt.Fprintln(r.Stdout, resp.Message)
		}
		if len(resp.Detail) == 0 {
			return
		}
		var rec record.HealthRecord
		if err := json.Unmarshal(resp.Detail, &rec); err != nil {
			return
		}
		fmt.Fprintf(r.Stdout, "status=%s score=%s hydration=%s risk=%s\n",
			rec.Status, rec.Score, rec.Hydration, rec.RiskFactor)
		for _, c := range rec.Correlations {
			fmt.Fprintf(r.Stdout, "  [%s] %s: %s\n", c.Polarity, c.Title, c.Description)
		}
	})
	return code
}

func (r Runner) commandHistory(ctx context.Context) int {
	return r.forwardOrFailFn(ctx, ipc.Request{Command: "history"}, forwardTimeout, func(resp ipc.Response) {
		var recs []record.HealthRecord
		if err := json.Unmarshal(resp.Detail, &recs); err != nil || len(recs) == 0 {
			fmt.Fprintln(r.Stdout, "no records")
			return
		}
		for _, rec := range recs {
			fmt.Fprintf(r.Stdout, "%s  %-10s score=%-4s %s\n",
				rec.Timestamp.Format(time.RFC3339), rec.Status, rec.Score, rec.Summary)
		}
	})
}

func (r Runner) forwardOrFail(ctx context.Context, req ipc.Request, timeout time.Duration) int {
	return r.forwardOrFailFn(ctx, req, timeout, func(resp ipc.Response) {
		if resp.Message != "" {
			fmt.Fprintln(r.Stdout, resp.Message)
		}
	})
}

func (r Runner) forwardOrFailFn(ctx context.Context, req ipc.Request, timeout time.Duration, onOK func(ipc.Response)) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	resp, handled, err := tryForward(ctx, socketPath, req, timeout)
	if !handled {
		fmt.Fprintln(r.Stderr, "error: no active vitalink session; start one with `vitalink run`")
		return 1
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	onOK(resp)
	return 0
}

// commandRun owns the long-lived session: it binds the socket, builds the
// session, and serves IPC until the context is cancelled.
func (r Runner) commandRun(ctx context.Context, cfg config.Config, logger *slog.Logger) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	listener, err := ipc.Acquire(ctx, socketPath, 180*time.Millisecond, 8)
	if err != nil {
		if errors.Is(err, ipc.ErrAlreadyRunning) {
			fmt.Fprintln(r.Stderr, "error: a vitalink session is already running")
			return 1
		}
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() {
		_ = listener.Close()
		_ = os.Remove(socketPath)
	}()

	session, err := NewSession(ctx, cfg, logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("session setup failed", "error", err.Error())
		return 1
	}
	defer session.Close()

	serveCtx, serveCancel := context.WithCancel(ctx)
	defer serveCancel()

	serveErrCh := make(chan error, 1)
	go func() {
		serveErrCh <- ipc.Serve(serveCtx, listener, session)
	}()

	fmt.Fprintf(r.Stdout, "session ready on %s\n", socketPath)
	logger.Info("session ready", "socket", socketPath, "user", cfg.User.ID)

	<-ctx.Done()
	serveCancel()
	if serveErr := <-serveErrCh; serveErr != nil {
		fmt.Fprintf(r.Stderr, "error: ipc server failed: %v\n", serveErr)
		return 1
	}

	logger.Info("session stopped")
	return 0
}

func tryForward(ctx context.Context, socketPath string, req ipc.Request, timeout time.Duration) (ipc.Response, bool, error) {
	resp, err := ipc.Send(ctx, socketPath, req, timeout)
	if err == nil {
		if resp.OK {
			return resp, true, nil
		}
		return resp, true, errors.New(resp.Error)
	}

	if isSocketMissing(err) || isConnectionRefused(err) {
		return ipc.Response{}, false, nil
	}

	return ipc.Response{}, true, fmt.Errorf("forward command %q: %w", req.Command, err)
}

func isSocketMissing(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, os.ErrNotExist) ||
		strings.Contains(err.Error(), "no such file or directory")
}

func isConnectionRefused(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, syscall.ECONNREFUSED)
}
