// Package bridge connects a live multimodal session to a presentation
// surface. It registers the console's capabilities with the session,
// folds incoming invocation batches into the display state, drives the
// renderer and presence callbacks, and acknowledges every invocation
// back to the session after a short delay.
//
// The interfaces are defined here, on the consumer side, so the bridge
// can be exercised against live.Mock without a network connection.
package bridge

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/Robert54/live-api-web-console/internal/log"
	"github.com/Robert54/live-api-web-console/pkg/capability"
	"github.com/Robert54/live-api-web-console/pkg/display"
	"github.com/Robert54/live-api-web-console/pkg/live"
)

// ConsoleInstructions is the default system instruction. It tells the
// model when to reach for each console capability and keeps ordinary
// conversation out of the tool channel.
const ConsoleInstructions = `You are my helpful assistant.

VISUALIZATION:
Any time I ask you for a graph call the "render_altair" function I have provided you. The json_graph argument must be a JSON STRING, not a json object. Don't ask for additional information, just make your best judgement. Examples: "plot rainfall for Seattle this year", "graph GDP growth for the last decade", "show me that as a chart".

ROOM INSPECTION:
When I ask you to inspect the room, judge its cleanliness or rate how tidy it is, call the "inspect_room" function with a one sentence assessment and a score from 0 to 100. Examples: "inspect the room", "how clean is it in here", "rate the tidiness".

EVERYTHING ELSE:
Answer normally as a voice assistant. Use search for questions about current events or facts you are unsure of. Don't narrate function calls, just make them and carry on.`

// Defaults applied by New when the corresponding Options field is zero.
const (
	DefaultVoice    = "Aoede"
	DefaultAckDelay = 200 * time.Millisecond
)

// Session is the slice of the live client the bridge consumes.
type Session interface {
	// SelectModel picks the generative model for the session.
	SelectModel(model string) error

	// Configure applies the session configuration. The bridge calls
	// this exactly once, before any invocation can arrive.
	Configure(cfg live.SessionConfig) error

	// OnToolCall subscribes to invocation batches. Passing nil
	// unsubscribes.
	OnToolCall(fn func(batch []live.FunctionCall))

	// SendToolResponses acknowledges a batch of invocations.
	SendToolResponses(batch []live.FunctionResponse) error
}

// Renderer receives parsed chart specifications whenever a chart
// transition is applied, including re-renders of an identical chart.
type Renderer interface {
	Render(spec display.ChartSpec) error
}

// Compile-time checks that both the real client and the mock satisfy
// the session surface the bridge needs.
var (
	_ Session = (*live.Client)(nil)
	_ Session = (*live.Mock)(nil)
)

// Options configures a Bridge. Zero fields fall back to the package
// defaults, except GoogleSearch which is taken as given.
type Options struct {
	// Model is the generative model to select.
	Model string

	// Voice is the prebuilt voice for audio responses.
	Voice string

	// SystemInstruction steers the model toward the console
	// capabilities.
	SystemInstruction string

	// GoogleSearch enables the built-in search tool alongside the
	// console capabilities.
	GoogleSearch bool

	// AckDelay is how long the bridge waits before acknowledging an
	// invocation batch.
	AckDelay time.Duration

	// Renderer receives parsed chart specifications. May be nil, in
	// which case charts are held in state but never drawn.
	Renderer Renderer
}

// DefaultOptions returns the options the console binary starts from.
func DefaultOptions() Options {
	return Options{
		Model:             live.DefaultModel,
		Voice:             DefaultVoice,
		SystemInstruction: ConsoleInstructions,
		GoogleSearch:      true,
		AckDelay:          DefaultAckDelay,
	}
}

// Bridge owns the capability lifecycle for one session. Create one per
// session with New, call Start once the session is ready to be
// configured, and Stop when tearing down.
type Bridge struct {
	session Session
	opts    Options

	mu      sync.Mutex
	started bool
	stopped bool
	state   display.State
	pending map[*time.Timer]struct{}

	// Callbacks, guarded by mu.
	onInspectionChange func(present bool)
	onStateChange      func(st display.State)
	onError            func(err error)
}

// New creates a Bridge over the given session. Zero option fields are
// filled with package defaults.
func New(session Session, opts Options) *Bridge {
	if opts.Model == "" {
		opts.Model = live.DefaultModel
	}
	if opts.Voice == "" {
		opts.Voice = DefaultVoice
	}
	if opts.SystemInstruction == "" {
		opts.SystemInstruction = ConsoleInstructions
	}
	if opts.AckDelay <= 0 {
		opts.AckDelay = DefaultAckDelay
	}
	return &Bridge{
		session: session,
		opts:    opts,
		pending: make(map[*time.Timer]struct{}),
	}
}

// OnInspectionChange registers a callback fired with the inspection
// presence whenever it changes, and once with false right after Start.
// Pass nil to unsubscribe.
func (b *Bridge) OnInspectionChange(fn func(present bool)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onInspectionChange = fn
}

// OnStateChange registers a callback fired after every applied
// transition with the new display state. Pass nil to unsubscribe.
func (b *Bridge) OnStateChange(fn func(st display.State)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onStateChange = fn
}

// OnError registers a callback for render and acknowledgment failures.
// Pass nil to unsubscribe.
func (b *Bridge) OnError(fn func(err error)) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onError = fn
}

// Start configures the session and subscribes to invocations. It must
// be called exactly once; repeat calls return ErrAlreadyStarted. A
// failed Start leaves the bridge unstarted so the caller may retry.
func (b *Bridge) Start() error {
	b.mu.Lock()
	if b.started {
		b.mu.Unlock()
		return ErrAlreadyStarted
	}
	if b.stopped {
		b.mu.Unlock()
		return ErrStopped
	}
	b.started = true
	b.mu.Unlock()

	if err := b.configureSession(); err != nil {
		b.mu.Lock()
		b.started = false
		b.mu.Unlock()
		return err
	}

	b.session.OnToolCall(b.handleToolCall)

	// The surface mounts without an inspection on it, and the
	// presence callback reports the initial state too.
	b.notifyInspection(false)

	log.Debug("bridge: started", "model", b.opts.Model, "voice", b.opts.Voice)
	return nil
}

func (b *Bridge) configureSession() error {
	if err := b.session.SelectModel(b.opts.Model); err != nil {
		return fmt.Errorf("bridge: select model: %w", err)
	}
	cfg := live.SessionConfig{
		ResponseModalities: []string{"AUDIO"},
		Voice:              b.opts.Voice,
		SystemInstruction:  b.opts.SystemInstruction,
		Declarations:       capability.Declarations(),
		GoogleSearch:       b.opts.GoogleSearch,
	}
	if err := b.session.Configure(cfg); err != nil {
		return fmt.Errorf("bridge: configure session: %w", err)
	}
	return nil
}

// Stop unsubscribes from the session and cancels every acknowledgment
// still pending. The last display state is kept. Stop is idempotent
// and safe to call on a bridge that never started.
func (b *Bridge) Stop() error {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return nil
	}
	b.stopped = true
	for timer := range b.pending {
		timer.Stop()
		delete(b.pending, timer)
	}
	b.mu.Unlock()

	b.session.OnToolCall(nil)
	log.Debug("bridge: stopped")
	return nil
}

// State returns a snapshot of the current display state.
func (b *Bridge) State() display.State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Started reports whether Start has completed successfully.
func (b *Bridge) Started() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.started && !b.stopped
}

// AckDelay returns the acknowledgment delay in effect.
func (b *Bridge) AckDelay() time.Duration {
	return b.opts.AckDelay
}

// handleToolCall folds one invocation batch into the display state and
// schedules its acknowledgment. It runs on the session's read
// goroutine, so transitions are applied in arrival order.
func (b *Bridge) handleToolCall(batch []live.FunctionCall) {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return
	}
	out := display.Reduce(b.state, batch)
	b.state = out.State
	if len(out.Acks) > 0 {
		b.scheduleAcksLocked(out.Acks)
	}
	b.mu.Unlock()

	switch out.Applied {
	case capability.KindChartRender:
		log.Debug("bridge: chart received", "bytes", len(out.State.ChartJSON))
		b.renderChart(out.State.ChartJSON)
	case capability.KindRoomInspect:
		log.Info("bridge: inspection received",
			"score", out.State.Score,
			"assessment", out.State.Assessment,
		)
	}

	if out.InspectionChanged {
		b.notifyInspection(out.State.Mode == display.ModeInspection)
	}
	if out.Applied != capability.KindUnknown {
		b.notifyState(out.State)
	}
}

// scheduleAcksLocked arms a cancellable timer that reports success for
// every invocation in the batch. Callers must hold b.mu.
func (b *Bridge) scheduleAcksLocked(acks []live.FunctionResponse) {
	var timer *time.Timer
	timer = time.AfterFunc(b.opts.AckDelay, func() {
		b.mu.Lock()
		_, armed := b.pending[timer]
		delete(b.pending, timer)
		b.mu.Unlock()
		if !armed {
			// Cancelled by Stop between firing and running.
			return
		}
		if err := b.session.SendToolResponses(acks); err != nil {
			b.reportError(fmt.Errorf("bridge: acknowledge invocations: %w", err))
		}
	})
	b.pending[timer] = struct{}{}
}

// renderChart parses the stored chart text and hands it to the
// renderer. A parse failure aborts this render cycle only; the text
// stays in state and the next valid chart replaces it.
func (b *Bridge) renderChart(text string) {
	if b.opts.Renderer == nil || text == "" {
		return
	}
	var spec display.ChartSpec
	if err := json.Unmarshal([]byte(text), &spec); err != nil {
		b.reportError(fmt.Errorf("bridge: parse chart specification: %w", err))
		return
	}
	if err := b.opts.Renderer.Render(spec); err != nil {
		b.reportError(fmt.Errorf("bridge: render chart: %w", err))
	}
}

func (b *Bridge) notifyInspection(present bool) {
	b.mu.Lock()
	fn := b.onInspectionChange
	b.mu.Unlock()
	if fn != nil {
		fn(present)
	}
}

func (b *Bridge) notifyState(st display.State) {
	b.mu.Lock()
	fn := b.onStateChange
	b.mu.Unlock()
	if fn != nil {
		fn(st)
	}
}

func (b *Bridge) reportError(err error) {
	b.mu.Lock()
	fn := b.onError
	b.mu.Unlock()
	if fn != nil {
		fn(err)
		return
	}
	log.Error(err.Error())
}
