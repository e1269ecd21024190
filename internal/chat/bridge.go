// Package chat forwards user messages to the analysis backend with the
// latest health context attached, recording both sides in the chat log.
package chat

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/nfarrow/vitalink/internal/backend"
	"github.com/nfarrow/vitalink/internal/chatlog"
	"github.com/nfarrow/vitalink/internal/record"
)

// Client is the bridge-facing subset of the backend client.
type Client interface {
	Chat(ctx context.Context, message string, chatCtx backend.ChatContext) (string, error)
}

// Bridge implements the voice controller's Responder against the real chat
// endpoint. Requests are not serialized: a reply may interleave with a later
// message if the user acts again before it returns.
type Bridge struct {
	logger   *slog.Logger
	client   Client
	log      *chatlog.Log
	timezone string
	now      func() time.Time

	mu     sync.RWMutex
	latest record.HealthRecord
}

func NewBridge(logger *slog.Logger, client Client, log *chatlog.Log, timezone string) *Bridge {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if timezone == "" {
		timezone = "UTC"
	}
	return &Bridge{
		logger:   logger,
		client:   client,
		log:      log,
		timezone: timezone,
		now:      time.Now,
	}
}

// SetHealthContext updates the record attached to subsequent messages,
// normally after a scan completes.
func (b *Bridge) SetHealthContext(rec record.HealthRecord) {
	b.mu.Lock()
	b.latest = rec
	b.mu.Unlock()
}

// Respond sends one message and returns the reply. The user message is
// appended to the log before the request; the reply (or a connection-failure
// notice) is appended when it lands.
func (b *Bridge) Respond(ctx context.Context, message string) (string, error) {
	if b.log != nil {
		b.log.AppendUser(message)
	}

	b.mu.RLock()
	latest := b.latest
	b.mu.RUnlock()

	now := b.now()
	local := now
	if loc, err := time.LoadLocation(b.timezone); err == nil {
		local = now.In(loc)
	}

	reply, err := b.client.Chat(ctx, message, backend.ChatContext{
		HealthRecord: latest,
		Timezone:     b.timezone,
		LocalTime:    local.Format("01/02/2006, 15:04"),
		ISOTime:      now.UTC().Format(time.RFC3339),
	})
	if err != nil {
		b.logger.Error("chat request failed", "error", err)
		if b.log != nil {
			b.log.AppendBot("Sorry, I couldn't connect to the server.")
		}
		return "", err
	}

	if b.log != nil {
		b.log.AppendBot(reply)
	}
	return reply, nil
}
