package voice

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/nfarrow/vitalink/internal/escalation"
	"github.com/nfarrow/vitalink/internal/fsm"
)

// Responder forwards an accepted transcript to the chat channel and returns
// the reply text to vocalize. Implementations own chat-log bookkeeping.
type Responder interface {
	Respond(ctx context.Context, transcript string) (string, error)
}

// RespondFunc adapts a function to the Responder interface.
type RespondFunc func(context.Context, string) (string, error)

func (f RespondFunc) Respond(ctx context.Context, transcript string) (string, error) {
	return f(ctx, transcript)
}

// Narrator receives the one-time user-visible notices the session emits when
// it degrades to disabled.
type Narrator interface {
	Narrate(text string)
}

// NarrateFunc adapts a function to the Narrator interface.
type NarrateFunc func(string)

func (f NarrateFunc) Narrate(text string) { f(text) }

// connectFailureReply matches the spoken fallback when the chat backend is
// unreachable.
const connectFailureReply = "Sorry, I couldn't connect to the server."

const (
	networkLockoutNotice = "Voice agent disconnected due to network issues. " +
		"Please check your internet connection and microphone permissions, then try again."
	permissionLockoutNotice = "Microphone access denied. " +
		"Please allow microphone access in your system settings."
	capabilityLockoutNotice = "Speech capture is not available on this system, so the voice agent is disabled."
)

// Snapshot is the externally visible session state.
type Snapshot struct {
	Status            fsm.State
	ConsecutiveFaults int
	PendingRestart    bool
}

// Config tunes controller timing. The zero value uses production defaults.
type Config struct {
	RestartDelay time.Duration
}

type eventKind int

const (
	evEnable eventKind = iota + 1
	evDisable
	evRestart
	evReply
	evSpoken
)

type event struct {
	kind eventKind

	// enable/disable request-response
	resp chan error

	// reply payload
	replyText string
	replyGen  uint64

	// speak completion
	spokenGen uint64
}

// Controller owns the live voice session: the capture cycle, the pending
// restart timer, and the fault counter. All session state is confined to the
// run loop goroutine; external callers interact through the event queue.
type Controller struct {
	logger    *slog.Logger
	engine    Engine
	speaker   Speaker
	responder Responder
	narrator  Narrator
	restarts  *restartScheduler

	events       chan event
	engineEvents chan CycleEvent
	done         chan struct{}
	cancel       context.CancelFunc

	mu   sync.RWMutex
	snap Snapshot

	// run-loop-owned state, never touched outside the loop
	status   fsm.State
	faults   int
	cycleID  uint64
	active   Cycle
	speakGen uint64
}

// NewController constructs and starts a controller with safe fallbacks.
func NewController(
	logger *slog.Logger,
	engine Engine,
	speaker Speaker,
	responder Responder,
	narrator Narrator,
	cfg Config,
) *Controller {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if speaker == nil {
		speaker = noopSpeaker{}
	}
	if responder == nil {
		responder = RespondFunc(func(context.Context, string) (string, error) { return "", nil })
	}
	if narrator == nil {
		narrator = NarrateFunc(func(string) {})
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		logger:       logger,
		engine:       engine,
		speaker:      speaker,
		responder:    responder,
		narrator:     narrator,
		restarts:     newRestartScheduler(cfg.RestartDelay),
		events:       make(chan event, 64),
		engineEvents: make(chan CycleEvent, 16),
		done:         make(chan struct{}),
		cancel:       cancel,
		status:       fsm.StateIdle,
		snap:         Snapshot{Status: fsm.StateIdle},
	}
	go c.run(ctx)
	return c
}

// State returns the current session snapshot.
func (c *Controller) State() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snap
}

// Enable turns the session on from idle or disabled. Re-enabling a disabled
// session re-probes capture capability and resets the fault counter.
func (c *Controller) Enable(ctx context.Context) error {
	resp := make(chan error, 1)
	select {
	case c.events <- event{kind: evEnable, resp: resp}:
	case <-c.done:
		return context.Canceled
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-resp:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Disable turns the session off: cancels the pending restart, aborts the
// in-flight capture cycle, and stops playback.
func (c *Controller) Disable() {
	resp := make(chan error, 1)
	select {
	case c.events <- event{kind: evDisable, resp: resp}:
		<-resp
	case <-c.done:
	}
}

// Close disables the session and stops the run loop.
func (c *Controller) Close() {
	c.Disable()
	c.cancel()
	<-c.done
}

// run is the single consumer of the event queue; it exclusively owns the
// capture cycle, restart timer, and fault counter.
func (c *Controller) run(ctx context.Context) {
	defer close(c.done)

	for {
		select {
		case <-ctx.Done():
			c.teardown()
			return
		case ev := <-c.events:
			c.handle(ctx, ev)
			c.publish()
		case ev := <-c.engineEvents:
			c.handleEngine(ctx, ev)
			c.publish()
		}
	}
}

func (c *Controller) handle(ctx context.Context, ev event) {
	switch ev.kind {
	case evEnable:
		err := c.handleEnable(ctx)
		// Snapshot must be current before the caller resumes.
		c.publish()
		ev.resp <- err
	case evDisable:
		c.teardown()
		c.publish()
		ev.resp <- nil
	case evRestart:
		c.handleRestart(ctx)
	case evReply:
		c.handleReply(ctx, ev.replyText, ev.replyGen)
	case evSpoken:
		c.handleSpoken(ev.spokenGen)
	}
}

func (c *Controller) handleEnable(ctx context.Context) error {
	switch c.status {
	case fsm.StateIdle, fsm.StateDisabled:
	default:
		return nil // already enabled
	}

	// Capability is re-probed on every enable rather than latched: a missing
	// microphone or ASR endpoint can be fixed without restarting the agent.
	if err := c.engine.Available(ctx); err != nil {
		c.logger.Error("speech capture unavailable", "error", err)
		c.toDisabled(capabilityLockoutNotice)
		return &CapabilityError{Cause: err}
	}

	c.transition(fsm.EventEnable)
	c.faults = 0
	c.startCycle(ctx)
	return nil
}

func (c *Controller) handleEngine(ctx context.Context, ev CycleEvent) {
	if ev.Cycle != c.cycleID || c.active == nil {
		c.logger.Debug("dropping stale engine event", "cycle", ev.Cycle, "current", c.cycleID)
		return
	}

	switch ev.Kind {
	case CycleStarted:
		c.faults = 0
	case CycleResult:
		c.handleResult(ctx, ev.Result)
	case CycleFault:
		c.handleFault(ev.Fault)
	case CycleEnded:
		c.active = nil
		if c.status == fsm.StateIdle || c.status == fsm.StateDisabled {
			return
		}
		c.restarts.Schedule(func() {
			select {
			case c.events <- event{kind: evRestart}:
			case <-c.done:
			}
		})
	}
}

func (c *Controller) handleResult(ctx context.Context, result RecognitionResult) {
	if Decide(result) != VerdictAccept {
		if result.IsFinal {
			c.logger.Info("ignored final result",
				"confidence", result.Confidence,
				"words", result.WordCount(),
			)
		}
		return
	}

	c.logger.Info("accepted transcript", "words", result.WordCount(), "confidence", result.Confidence)
	c.transition(fsm.EventAccept)

	c.speakGen++
	gen := c.speakGen
	transcript := result.Transcript
	go func() {
		reply, err := c.responder.Respond(ctx, transcript)
		if err != nil {
			c.logger.Error("chat request failed", "error", err)
			reply = connectFailureReply
		}
		select {
		case c.events <- event{kind: evReply, replyText: reply, replyGen: gen}:
		case <-c.done:
		}
	}()
}

func (c *Controller) handleFault(kind escalation.Kind) {
	decision := escalation.Escalate(kind, c.faults)
	c.faults = decision.NextCount
	c.logger.Warn("capture fault", "kind", string(kind), "consecutive", c.faults)

	if decision.Action == escalation.ActionDisable {
		notice := networkLockoutNotice
		if kind == escalation.KindPermissionDenied {
			notice = permissionLockoutNotice
		}
		c.toDisabled(notice)
		return
	}

	if kind == escalation.KindNoSpeech {
		// Natural retry: the cycle end will schedule the restart.
		return
	}
	c.transition(fsm.EventBackoff)
}

func (c *Controller) handleRestart(ctx context.Context) {
	switch c.status {
	case fsm.StateIdle, fsm.StateDisabled:
		return
	}
	if c.active != nil {
		// Previous cycle has not ended yet; its end will reschedule.
		return
	}
	c.transition(fsm.EventRestart)
	c.startCycle(ctx)
}

func (c *Controller) handleReply(ctx context.Context, text string, gen uint64) {
	if gen != c.speakGen {
		return
	}
	switch c.status {
	case fsm.StateIdle, fsm.StateDisabled:
		// Session was muted while the reply was in flight; never narrate aloud.
		return
	}

	c.transition(fsm.EventReply)
	done, err := c.speaker.Speak(ctx, StripEmphasis(text))
	if err != nil {
		c.logger.Warn("speech synthesis failed", "error", err)
		c.handleSpoken(gen)
		return
	}
	go func() {
		<-done
		select {
		case c.events <- event{kind: evSpoken, spokenGen: gen}:
		case <-c.done:
		}
	}()
}

func (c *Controller) handleSpoken(gen uint64) {
	if gen != c.speakGen {
		return
	}
	if c.status != fsm.StateSpeaking {
		return
	}
	c.transition(fsm.EventSpoken)
}

// startCycle begins a new capture cycle under a fresh id. A synchronous
// start failure is treated like an engine network fault so transient
// problems retry and persistent ones hit the disable threshold.
func (c *Controller) startCycle(ctx context.Context) {
	c.cycleID++
	cycle, err := c.engine.Start(ctx, c.cycleID, c.engineEvents)
	if err != nil {
		c.logger.Error("capture start failed", "error", err)
		c.handleFault(escalation.KindNetwork)
		if c.status != fsm.StateDisabled {
			c.restarts.Schedule(func() {
				select {
				case c.events <- event{kind: evRestart}:
				case <-c.done:
				}
			})
		}
		return
	}
	c.active = cycle
}

// toDisabled enters the terminal disabled state, narrating exactly once on
// the transition edge.
func (c *Controller) toDisabled(notice string) {
	alreadyDisabled := c.status == fsm.StateDisabled
	c.stopCapture()
	c.transition(fsm.EventLockout)
	if !alreadyDisabled {
		c.narrator.Narrate(notice)
	}
}

// teardown handles explicit session disable: everything stops, counter resets.
func (c *Controller) teardown() {
	c.stopCapture()
	c.faults = 0
	c.transition(fsm.EventShutdown)
}

// stopCapture cancels the pending restart, aborts the in-flight cycle, and
// interrupts playback. Bumping the cycle id makes any trailing engine
// callbacks provably stale.
func (c *Controller) stopCapture() {
	c.restarts.Cancel()
	if c.active != nil {
		c.active.Abort()
		c.active = nil
	}
	c.cycleID++
	c.speakGen++
	c.speaker.Cancel()
}

func (c *Controller) transition(event fsm.Event) {
	next, err := fsm.Transition(c.status, event)
	if err != nil {
		c.logger.Debug("transition skipped", "error", err)
		return
	}
	c.status = next
}

// publish copies loop-owned state into the read snapshot.
func (c *Controller) publish() {
	c.mu.Lock()
	c.snap = Snapshot{
		Status:            c.status,
		ConsecutiveFaults: c.faults,
		PendingRestart:    c.restarts.Pending(),
	}
	c.mu.Unlock()
}
