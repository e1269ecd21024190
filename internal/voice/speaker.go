package voice

import (
	"context"
	"strings"
)

// Speaker serializes spoken output. Implementations must be last-call-wins:
// a new Speak interrupts any utterance still playing.
type Speaker interface {
	// Speak begins vocalizing text. The returned channel closes when
	// playback completes or is interrupted.
	Speak(ctx context.Context, text string) (<-chan struct{}, error)
	// Cancel stops any in-flight utterance.
	Cancel()
}

// noopSpeaker preserves controller flow when no speaker is wired.
type noopSpeaker struct{}

func (noopSpeaker) Speak(context.Context, string) (<-chan struct{}, error) {
	done := make(chan struct{})
	close(done)
	return done, nil
}

func (noopSpeaker) Cancel() {}

// StripEmphasis removes markdown emphasis characters so they are not read
// aloud. Replies come back from the model with asterisk formatting.
func StripEmphasis(text string) string {
	return strings.ReplaceAll(text, "*", "")
}
