// Package wsengine implements the voice capture engine against a streaming
// speech-to-text websocket endpoint, one dial per capture cycle.
package wsengine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/gorilla/websocket"

	"github.com/nfarrow/vitalink/internal/audio"
	"github.com/nfarrow/vitalink/internal/escalation"
	"github.com/nfarrow/vitalink/internal/voice"
)

// Config controls the websocket recognizer connection.
type Config struct {
	// URL is the listen endpoint; http(s) schemes are rewritten to ws(s).
	URL      string
	APIKey   string
	Model    string
	Language string

	// AudioInput selects the Pulse source, empty for the default microphone.
	AudioInput string
}

// captureStream is the PCM source for one cycle.
type captureStream interface {
	Chunks() <-chan []byte
	Stop() error
}

// Engine dials the recognizer once per capture cycle and pumps microphone
// PCM into it until the first final transcript or a fault.
type Engine struct {
	cfg    Config
	logger *slog.Logger

	// Test seams.
	openCapture func(ctx context.Context, input string) (captureStream, error)
	probeMic    func(ctx context.Context, input string) error
	dial        func(ctx context.Context, wsURL string, header http.Header) (*websocket.Conn, error)
}

func New(cfg Config, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if cfg.Model == "" {
		cfg.Model = "nova-2"
	}
	return &Engine{
		cfg:    cfg,
		logger: logger,
		openCapture: func(ctx context.Context, input string) (captureStream, error) {
			return audio.Open(ctx, input)
		},
		probeMic: audio.Probe,
		dial: func(ctx context.Context, wsURL string, header http.Header) (*websocket.Conn, error) {
			conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, header)
			return conn, err
		},
	}
}

// Available reports whether recognition can start: endpoint configured and a
// usable microphone present. Checked on every enable.
func (e *Engine) Available(ctx context.Context) error {
	if strings.TrimSpace(e.cfg.URL) == "" {
		return errors.New("recognizer URL is not configured")
	}
	if _, err := listenURL(e.cfg); err != nil {
		return err
	}
	if err := e.probeMic(ctx, e.cfg.AudioInput); err != nil {
		return fmt.Errorf("microphone check: %w", err)
	}
	return nil
}

// Start opens the microphone and dials the recognizer for one cycle. Events
// carry the given cycle id; the consumer drops ids it no longer owns.
func (e *Engine) Start(ctx context.Context, id uint64, events chan<- voice.CycleEvent) (voice.Cycle, error) {
	wsURL, err := listenURL(e.cfg)
	if err != nil {
		return nil, err
	}

	cctx, cancel := context.WithCancel(ctx)

	capture, err := e.openCapture(cctx, e.cfg.AudioInput)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("open capture: %w", err)
	}

	header := http.Header{}
	if e.cfg.APIKey != "" {
		header.Set("Authorization", "Token "+e.cfg.APIKey)
	}
	conn, err := e.dial(cctx, wsURL, header)
	if err != nil {
		cancel()
		_ = capture.Stop()
		return nil, fmt.Errorf("dial recognizer: %w", err)
	}

	go e.run(cctx, cancel, id, conn, capture, events)

	return &wsCycle{cancel: cancel}, nil
}

type wsCycle struct {
	cancel func()
	once   sync.Once
}

func (c *wsCycle) Abort() {
	c.once.Do(c.cancel)
}

// run owns the connection for one cycle: Started, zero or more Results,
// maybe one Fault, then exactly one Ended.
func (e *Engine) run(ctx context.Context, cancel func(), id uint64, conn *websocket.Conn, capture captureStream, events chan<- voice.CycleEvent) {
	defer func() {
		cancel()
		_ = capture.Stop()
		_ = conn.Close()
		emit(ctx, events, voice.CycleEvent{Cycle: id, Kind: voice.CycleEnded})
	}()

	emit(ctx, events, voice.CycleEvent{Cycle: id, Kind: voice.CycleStarted})

	// The dial context does not bound the established connection; closing
	// the conn is what unblocks ReadMessage on abort.
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	go pumpAudio(ctx, conn, capture)

	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			e.logger.Warn("recognizer read failed", "cycle", id, "error", err)
			emit(ctx, events, voice.CycleEvent{Cycle: id, Kind: voice.CycleFault, Fault: escalation.KindNetwork})
			return
		}

		var resp listenResponse
		if err := json.Unmarshal(payload, &resp); err != nil {
			continue
		}

		if strings.EqualFold(resp.Type, "Error") {
			kind := classifyFault(resp.Message)
			e.logger.Warn("recognizer error", "cycle", id, "kind", kind, "message", resp.Message)
			emit(ctx, events, voice.CycleEvent{Cycle: id, Kind: voice.CycleFault, Fault: kind})
			return
		}

		transcript, confidence := resp.best()
		if transcript == "" {
			continue
		}

		final := resp.IsFinal || resp.SpeechFinal
		emit(ctx, events, voice.CycleEvent{
			Cycle: id,
			Kind:  voice.CycleResult,
			Result: voice.RecognitionResult{
				Transcript: transcript,
				Confidence: confidence,
				IsFinal:    final,
			},
		})
		if final {
			// One utterance per cycle; the session restarts after cooldown.
			return
		}
	}
}

// pumpAudio forwards PCM chunks as binary frames until the capture ends,
// then asks the recognizer to flush.
func pumpAudio(ctx context.Context, conn *websocket.Conn, capture captureStream) {
	for {
		select {
		case <-ctx.Done():
			return
		case chunk, ok := <-capture.Chunks():
			if !ok {
				_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`))
				return
			}
			if err := conn.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
				return
			}
		}
	}
}

func emit(ctx context.Context, events chan<- voice.CycleEvent, ev voice.CycleEvent) {
	select {
	case events <- ev:
	case <-ctx.Done():
		// Still try: the consumer outlives the cycle and discards stale ids.
		select {
		case events <- ev:
		default:
		}
	}
}

// classifyFault maps recognizer error text to an escalation kind.
func classifyFault(message string) escalation.Kind {
	m := strings.ToLower(message)
	switch {
	case strings.Contains(m, "not-allowed"), strings.Contains(m, "permission"):
		return escalation.KindPermissionDenied
	case strings.Contains(m, "no-speech"), strings.Contains(m, "no speech"):
		return escalation.KindNoSpeech
	default:
		return escalation.KindNetwork
	}
}

type listenResponse struct {
	Type        string `json:"type"`
	Message     string `json:"message"`
	IsFinal     bool   `json:"is_final"`
	SpeechFinal bool   `json:"speech_final"`

	Channel struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
}

func (r listenResponse) best() (string, float64) {
	if len(r.Channel.Alternatives) == 0 {
		return "", 0
	}
	alt := r.Channel.Alternatives[0]
	return strings.TrimSpace(alt.Transcript), alt.Confidence
}

// listenURL builds the websocket endpoint with stream parameters.
func listenURL(cfg Config) (string, error) {
	base := strings.TrimSpace(cfg.URL)
	if strings.HasPrefix(base, "https://") {
		base = "wss://" + strings.TrimPrefix(base, "https://")
	} else if strings.HasPrefix(base, "http://") {
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}

	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid recognizer URL: %w", err)
	}

	query := u.Query()
	query.Set("model", cfg.Model)
	query.Set("encoding", "linear16")
	query.Set("sample_rate", "16000")
	query.Set("channels", "1")
	query.Set("interim_results", "true")
	if cfg.Language != "" {
		query.Set("language", cfg.Language)
	}
	u.RawQuery = query.Encode()
	return u.String(), nil
}
