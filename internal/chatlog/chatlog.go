// Package chatlog is the ordered chat/narration channel shared by the voice
// session, the scan pipeline, and whatever UI renders the transcript.
package chatlog

import (
	"sync"
	"time"
)

type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

// Message is one chat transcript entry.
type Message struct {
	Sender Sender
	Text   string
	At     time.Time
}

// Log appends messages in arrival order. User messages always land in the
// order the user acted; bot replies may interleave with later user messages
// because the chat channel is not serialized.
type Log struct {
	mu       sync.Mutex
	messages []Message
	now      func() time.Time
}

func New() *Log {
	return &Log{now: time.Now}
}

// AppendUser records one user-authored message.
func (l *Log) AppendUser(text string) {
	l.append(SenderUser, text)
}

// AppendBot records one bot reply or notice.
func (l *Log) AppendBot(text string) {
	l.append(SenderBot, text)
}

// Narrate satisfies the controller and pipeline notice interfaces; notices
// read as bot messages.
func (l *Log) Narrate(text string) {
	l.append(SenderBot, text)
}

func (l *Log) append(sender Sender, text string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, Message{Sender: sender, Text: text, At: l.now()})
}

// Messages returns a copy of the transcript in append order.
func (l *Log) Messages() []Message {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Message(nil), l.messages...)
}

// Len returns the number of transcript entries.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.messages)
}
