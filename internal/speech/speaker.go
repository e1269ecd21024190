// Package speech speaks reply text through an external TTS command.
package speech

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"sync"
)

// Speaker pipes utterance text to a configured command's stdin, for example
// `piper --output-raw | aplay`. Only one utterance plays at a time; a new
// Speak call cancels the previous one.
type Speaker struct {
	argv   []string
	logger *slog.Logger

	mu      sync.Mutex
	current context.CancelFunc
}

func NewSpeaker(argv []string, logger *slog.Logger) *Speaker {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Speaker{argv: argv, logger: logger}
}

// Speak starts the TTS command with text on stdin. The returned channel
// closes when playback finishes, is cancelled, or the command fails.
func (s *Speaker) Speak(ctx context.Context, text string) (<-chan struct{}, error) {
	if len(s.argv) == 0 {
		return nil, fmt.Errorf("speaker command is not configured")
	}
	if text == "" {
		done := make(chan struct{})
		close(done)
		return done, nil
	}

	sctx, cancel := context.WithCancel(ctx)

	cmd := exec.CommandContext(sctx, s.argv[0], s.argv[1:]...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		cancel()
		return nil, fmt.Errorf("open stdin for %s: %w", s.argv[0], err)
	}
	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		cancel()
		return nil, fmt.Errorf("start %s: %w", s.argv[0], err)
	}

	s.mu.Lock()
	if s.current != nil {
		s.current()
	}
	s.current = cancel
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := stdin.Write([]byte(text)); err != nil {
			s.logger.Warn("tts stdin write failed", "error", err)
		}
		_ = stdin.Close()
		if err := cmd.Wait(); err != nil && sctx.Err() == nil {
			s.logger.Warn("tts command failed", "command", s.argv[0], "error", err)
		}
		cancel()
	}()
	return done, nil
}

// Cancel stops the current utterance, if any.
func (s *Speaker) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current != nil {
		s.current()
		s.current = nil
	}
}
