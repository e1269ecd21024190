package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strings"

	"github.com/nfarrow/vitalink/internal/backend"
	"github.com/nfarrow/vitalink/internal/chat"
	"github.com/nfarrow/vitalink/internal/chatlog"
	"github.com/nfarrow/vitalink/internal/config"
	"github.com/nfarrow/vitalink/internal/ipc"
	"github.com/nfarrow/vitalink/internal/scan"
	"github.com/nfarrow/vitalink/internal/speech"
	"github.com/nfarrow/vitalink/internal/store"
	"github.com/nfarrow/vitalink/internal/voice"
	"github.com/nfarrow/vitalink/internal/wsengine"
)

const historyLimit = 20

// Session owns the long-running interaction state: the voice controller, the
// scan pipeline, the chat bridge, and local record storage. It also answers
// IPC commands from short-lived CLI invocations.
type Session struct {
	logger     *slog.Logger
	userID     string
	controller *voice.Controller
	pipeline   *scan.Pipeline
	bridge     *chat.Bridge
	records    *store.SQLiteStore
	log        *chatlog.Log
}

func NewSession(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	client := backend.NewClient(cfg.Backend.URL)

	records := store.NewSQLiteStore(cfg.Store.DBPath)
	if err := records.Init(ctx); err != nil {
		return nil, fmt.Errorf("open record store: %w", err)
	}

	var blobs store.BlobStore
	if strings.TrimSpace(cfg.Store.BlobURL) != "" {
		blobs = store.NewHTTPBlobStore(cfg.Store.BlobURL, cfg.Store.BlobBucket, cfg.Store.BlobAPIKey)
	}
	gateway := store.NewGateway(logger, blobs, records)

	log := chatlog.New()
	bridge := chat.NewBridge(logger, client, log, cfg.User.Timezone)

	// The newest stored record seeds the chat context so conversation
	// works before the first scan of this run.
	if recent, err := records.RecentForUser(ctx, cfg.User.ID, 1); err == nil && len(recent) > 0 {
		bridge.SetHealthContext(recent[0])
	}

	engine := wsengine.New(wsengine.Config{
		URL:        cfg.Recognizer.URL,
		APIKey:     cfg.Recognizer.APIKey,
		Model:      cfg.Recognizer.Model,
		Language:   cfg.Recognizer.Language,
		AudioInput: cfg.Audio.Input,
	}, logger)

	var speaker voice.Speaker
	if len(cfg.Speaker.Argv) > 0 {
		speaker = speech.NewSpeaker(cfg.Speaker.Argv, logger)
	}

	return &Session{
		logger:     logger,
		userID:     cfg.User.ID,
		controller: voice.NewController(logger, engine, speaker, bridge, log, voice.Config{}),
		pipeline:   scan.NewPipeline(logger, client, gateway, log, cfg.User.ID),
		bridge:     bridge,
		records:    records,
		log:        log,
	}, nil
}

// Close shuts the voice controller down and releases storage.
func (s *Session) Close() {
	s.controller.Close()
	_ = s.records.Close()
}

// Handle answers one IPC request. Scan requests block until the job
// finishes; the client picks its own deadline.
func (s *Session) Handle(ctx context.Context, req ipc.Request) ipc.Response {
	switch req.Command {
	case "status":
		return s.handleStatus()
	case "enable":
		return s.handleEnable(ctx)
	case "disable":
		s.controller.Disable()
		return ipc.Response{OK: true, State: stateName(s.controller.State()), Message: "voice mode off"}
	case "say":
		return s.handleSay(ctx, req.Message)
	case "scan":
		return s.handleScan(ctx, req.Path)
	case "history":
		return s.handleHistory(ctx)
	default:
		return ipc.Response{OK: false, Error: fmt.Sprintf("unknown command %q", req.Command)}
	}
}

func (s *Session) handleStatus() ipc.Response {
	snap := s.controller.State()
	msg := fmt.Sprintf("faults=%d pending_restart=%t", snap.ConsecutiveFaults, snap.PendingRestart)
	if job, ok := s.pipeline.Active(); ok {
		msg += fmt.Sprintf(" scan=%s", job.Stage)
	}
	return ipc.Response{OK: true, State: stateName(snap), Message: msg}
}

func (s *Session) handleEnable(ctx context.Context) ipc.Response {
	if err := s.controller.Enable(ctx); err != nil {
		var capErr *voice.CapabilityError
		if errors.As(err, &capErr) {
			return ipc.Response{OK: false, State: stateName(s.controller.State()), Error: err.Error()}
		}
		return ipc.Response{OK: false, Error: err.Error()}
	}
	return ipc.Response{OK: true, State: stateName(s.controller.State()), Message: "voice mode on"}
}

func (s *Session) handleSay(ctx context.Context, message string) ipc.Response {
	if strings.TrimSpace(message) == "" {
		return ipc.Response{OK: false, Error: "message is empty"}
	}
	reply, err := s.bridge.Respond(ctx, message)
	if err != nil {
		return ipc.Response{OK: false, Error: err.Error()}
	}
	return ipc.Response{OK: true, Message: reply}
}

func (s *Session) handleScan(ctx context.Context, path string) ipc.Response {
	if strings.TrimSpace(path) == "" {
		return ipc.Response{OK: false, Error: "scan requires a file path"}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return ipc.Response{OK: false, Error: fmt.Sprintf("read scan file: %v", err)}
	}

	rec, err := s.pipeline.Submit(ctx, scan.File{
		Name: filepath.Base(path),
		MIME: mime.TypeByExtension(filepath.Ext(path)),
		Data: data,
	})
	if err != nil {
		return ipc.Response{OK: false, Error: err.Error()}
	}

	s.bridge.SetHealthContext(rec)

	detail, err := json.Marshal(rec)
	if err != nil {
		s.logger.Warn("encode scan record failed", "error", err)
	}
	return ipc.Response{OK: true, Message: rec.Summary, Detail: detail}
}

func (s *Session) handleHistory(ctx context.Context) ipc.Response {
	recent, err := s.records.RecentForUser(ctx, s.userID, historyLimit)
	if err != nil {
		return ipc.Response{OK: false, Error: err.Error()}
	}
	detail, err := json.Marshal(recent)
	if err != nil {
		return ipc.Response{OK: false, Error: err.Error()}
	}
	return ipc.Response{OK: true, Message: fmt.Sprintf("%d records", len(recent)), Detail: detail}
}

func stateName(snap voice.Snapshot) string {
	return string(snap.Status)
}
