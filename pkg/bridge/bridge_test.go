package bridge

import (
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/Robert54/live-api-web-console/pkg/capability"
	"github.com/Robert54/live-api-web-console/pkg/display"
	"github.com/Robert54/live-api-web-console/pkg/live"
)

const chartJSON = `{"mark":"bar","data":{"values":[{"x":1,"y":2}]}}`

// chartRecorder captures rendered specifications.
type chartRecorder struct {
	mu    sync.Mutex
	specs []display.ChartSpec
	err   error
}

func (r *chartRecorder) Render(spec display.ChartSpec) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.specs = append(r.specs, spec)
	return nil
}

func (r *chartRecorder) rendered() []display.ChartSpec {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]display.ChartSpec{}, r.specs...)
}

// errRecorder captures reported errors across goroutines.
type errRecorder struct {
	mu   sync.Mutex
	errs []error
}

func (r *errRecorder) record(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func (r *errRecorder) recorded() []error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]error{}, r.errs...)
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool, what string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func chartCall(id string) live.FunctionCall {
	return live.FunctionCall{
		ID:   id,
		Name: capability.NameRenderAltair,
		Args: map[string]any{"json_graph": chartJSON},
	}
}

func inspectCall(id string) live.FunctionCall {
	return live.FunctionCall{
		ID:   id,
		Name: capability.NameInspectRoom,
		Args: map[string]any{"assessment": "Tidy enough.", "score": 82.0},
	}
}

func TestNewDefaults(t *testing.T) {
	b := New(live.NewMock(), Options{})

	if b.opts.Model != live.DefaultModel {
		t.Errorf("Model = %q, want %q", b.opts.Model, live.DefaultModel)
	}
	if b.opts.Voice != DefaultVoice {
		t.Errorf("Voice = %q, want %q", b.opts.Voice, DefaultVoice)
	}
	if b.opts.SystemInstruction != ConsoleInstructions {
		t.Error("SystemInstruction not defaulted")
	}
	if b.opts.AckDelay != DefaultAckDelay {
		t.Errorf("AckDelay = %v, want %v", b.opts.AckDelay, DefaultAckDelay)
	}
	if b.opts.GoogleSearch {
		t.Error("GoogleSearch should stay false unless requested")
	}

	def := DefaultOptions()
	if !def.GoogleSearch {
		t.Error("DefaultOptions().GoogleSearch = false, want true")
	}
}

func TestStartConfiguresSession(t *testing.T) {
	m := live.NewMock()
	b := New(m, DefaultOptions())

	if err := b.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if m.SelectModelCalls != 1 {
		t.Fatalf("SelectModelCalls = %d, want 1", m.SelectModelCalls)
	}
	if m.SelectedModel != live.DefaultModel {
		t.Errorf("SelectedModel = %q, want %q", m.SelectedModel, live.DefaultModel)
	}
	if m.ConfigureCalls != 1 {
		t.Fatalf("ConfigureCalls = %d, want 1", m.ConfigureCalls)
	}

	cfg := m.Configured
	if got, want := cfg.ResponseModalities, []string{"AUDIO"}; !reflect.DeepEqual(got, want) {
		t.Errorf("ResponseModalities = %v, want %v", got, want)
	}
	if cfg.Voice != DefaultVoice {
		t.Errorf("Voice = %q, want %q", cfg.Voice, DefaultVoice)
	}
	if cfg.SystemInstruction != ConsoleInstructions {
		t.Error("SystemInstruction not passed through")
	}
	if !cfg.GoogleSearch {
		t.Error("GoogleSearch not enabled")
	}
	if len(cfg.Declarations) != 2 {
		t.Fatalf("len(Declarations) = %d, want 2", len(cfg.Declarations))
	}
	if cfg.Declarations[0].Name != capability.NameRenderAltair {
		t.Errorf("Declarations[0].Name = %q, want %q", cfg.Declarations[0].Name, capability.NameRenderAltair)
	}
	if cfg.Declarations[1].Name != capability.NameInspectRoom {
		t.Errorf("Declarations[1].Name = %q, want %q", cfg.Declarations[1].Name, capability.NameInspectRoom)
	}

	if !m.HasToolCallHandler() {
		t.Error("no invocation handler subscribed after Start")
	}
	if !b.Started() {
		t.Error("Started() = false after Start")
	}

	if err := b.Start(); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start() error = %v, want ErrAlreadyStarted", err)
	}
	if m.ConfigureCalls != 1 {
		t.Errorf("ConfigureCalls after second Start = %d, want 1", m.ConfigureCalls)
	}
}

func TestStartReportsInitialPresence(t *testing.T) {
	m := live.NewMock()
	b := New(m, Options{AckDelay: time.Millisecond})

	var presence []bool
	b.OnInspectionChange(func(present bool) {
		presence = append(presence, present)
	})

	if err := b.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	if got, want := presence, []bool{false}; !reflect.DeepEqual(got, want) {
		t.Errorf("presence after Start = %v, want %v", got, want)
	}
}

func TestStartFailureAllowsRetry(t *testing.T) {
	m := live.NewMock()
	boom := errors.New("boom")
	m.SelectModelFunc = func(model string) error { return boom }

	b := New(m, Options{AckDelay: time.Millisecond})
	if err := b.Start(); !errors.Is(err, boom) {
		t.Fatalf("Start() error = %v, want %v", err, boom)
	}
	if b.Started() {
		t.Fatal("Started() = true after failed Start")
	}

	m.SelectModelFunc = nil
	if err := b.Start(); err != nil {
		t.Fatalf("retried Start() error = %v", err)
	}
	if !b.Started() {
		t.Error("Started() = false after successful retry")
	}
}

func TestStartAfterStop(t *testing.T) {
	b := New(live.NewMock(), Options{AckDelay: time.Millisecond})
	if err := b.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if err := b.Start(); !errors.Is(err, ErrStopped) {
		t.Errorf("Start() after Stop error = %v, want ErrStopped", err)
	}
}

func TestChartInvocation(t *testing.T) {
	m := live.NewMock()
	rec := &chartRecorder{}
	b := New(m, Options{AckDelay: time.Millisecond, Renderer: rec})

	var presence []bool
	b.OnInspectionChange(func(present bool) {
		presence = append(presence, present)
	})

	if err := b.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	m.SimulateToolCall([]live.FunctionCall{chartCall("call-1")})

	st := b.State()
	if st.Mode != display.ModeChart {
		t.Fatalf("Mode = %v, want %v", st.Mode, display.ModeChart)
	}
	if st.ChartJSON != chartJSON {
		t.Errorf("ChartJSON = %q, want %q", st.ChartJSON, chartJSON)
	}

	specs := rec.rendered()
	if len(specs) != 1 {
		t.Fatalf("rendered %d specs, want 1", len(specs))
	}
	if specs[0]["mark"] != "bar" {
		t.Errorf(`spec["mark"] = %v, want "bar"`, specs[0]["mark"])
	}

	// A chart never touches inspection presence.
	if got, want := presence, []bool{false}; !reflect.DeepEqual(got, want) {
		t.Errorf("presence = %v, want %v", got, want)
	}

	waitFor(t, time.Second, func() bool {
		return len(m.ResponsesSent()) == 1
	}, "acknowledgment batch")

	acks := m.ResponsesSent()[0]
	if len(acks) != 1 {
		t.Fatalf("len(acks) = %d, want 1", len(acks))
	}
	if acks[0].ID != "call-1" || acks[0].Name != capability.NameRenderAltair {
		t.Errorf("ack = %+v, want id call-1 name %s", acks[0], capability.NameRenderAltair)
	}
	if got, want := acks[0].Response, map[string]any{"success": true}; !reflect.DeepEqual(got, want) {
		t.Errorf("ack response = %v, want %v", got, want)
	}
}

func TestInspectionPresence(t *testing.T) {
	m := live.NewMock()
	rec := &chartRecorder{}
	b := New(m, Options{AckDelay: time.Millisecond, Renderer: rec})

	var presence []bool
	b.OnInspectionChange(func(present bool) {
		presence = append(presence, present)
	})

	if err := b.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	m.SimulateToolCall([]live.FunctionCall{inspectCall("call-1")})

	st := b.State()
	if st.Mode != display.ModeInspection {
		t.Fatalf("Mode = %v, want %v", st.Mode, display.ModeInspection)
	}
	if st.Assessment != "Tidy enough." || st.Score != 82 {
		t.Errorf("inspection = (%q, %v), want (Tidy enough., 82)", st.Assessment, st.Score)
	}

	// A chart replaces the inspection and presence drops back.
	m.SimulateToolCall([]live.FunctionCall{chartCall("call-2")})

	if got := b.State().Mode; got != display.ModeChart {
		t.Fatalf("Mode after chart = %v, want %v", got, display.ModeChart)
	}
	if got, want := presence, []bool{false, true, false}; !reflect.DeepEqual(got, want) {
		t.Errorf("presence = %v, want %v", got, want)
	}
	if len(rec.rendered()) != 1 {
		t.Errorf("rendered %d specs, want 1", len(rec.rendered()))
	}
}

func TestUnknownInvocationAcked(t *testing.T) {
	m := live.NewMock()
	b := New(m, Options{AckDelay: time.Millisecond})

	var presence []bool
	b.OnInspectionChange(func(present bool) {
		presence = append(presence, present)
	})

	if err := b.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	m.SimulateToolCall([]live.FunctionCall{{
		ID:   "call-9",
		Name: "set_volume",
		Args: map[string]any{"level": 5.0},
	}})

	if got := b.State().Mode; got != display.ModeEmpty {
		t.Errorf("Mode = %v, want %v", got, display.ModeEmpty)
	}
	if got, want := presence, []bool{false}; !reflect.DeepEqual(got, want) {
		t.Errorf("presence = %v, want %v", got, want)
	}

	waitFor(t, time.Second, func() bool {
		return len(m.ResponsesSent()) == 1
	}, "acknowledgment batch")

	acks := m.ResponsesSent()[0]
	if len(acks) != 1 || acks[0].ID != "call-9" || acks[0].Name != "set_volume" {
		t.Errorf("acks = %+v, want one ack echoing call-9/set_volume", acks)
	}
}

func TestStopCancelsPendingAcks(t *testing.T) {
	m := live.NewMock()
	b := New(m, Options{AckDelay: 50 * time.Millisecond})

	if err := b.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	m.SimulateToolCall([]live.FunctionCall{chartCall("call-1")})
	m.SimulateToolCall([]live.FunctionCall{inspectCall("call-2")})

	if err := b.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if m.HasToolCallHandler() {
		t.Error("invocation handler still subscribed after Stop")
	}

	time.Sleep(120 * time.Millisecond)
	if got := m.ResponsesSent(); len(got) != 0 {
		t.Errorf("acks sent after Stop: %+v", got)
	}
}

func TestStopKeepsState(t *testing.T) {
	m := live.NewMock()
	b := New(m, Options{AckDelay: time.Millisecond})

	if err := b.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	m.SimulateToolCall([]live.FunctionCall{inspectCall("call-1")})

	if err := b.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if err := b.Stop(); err != nil {
		t.Fatalf("second Stop() error = %v", err)
	}

	st := b.State()
	if st.Mode != display.ModeInspection || st.Score != 82 {
		t.Errorf("state after Stop = %+v, want the last inspection", st)
	}
	if b.Started() {
		t.Error("Started() = true after Stop")
	}
}

func TestNoTransitionsAfterStop(t *testing.T) {
	m := live.NewMock()
	b := New(m, Options{AckDelay: time.Millisecond})

	if err := b.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := b.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}

	m.SimulateToolCall([]live.FunctionCall{chartCall("call-1")})

	if got := b.State().Mode; got != display.ModeEmpty {
		t.Errorf("Mode after post-Stop invocation = %v, want %v", got, display.ModeEmpty)
	}
}

func TestChartParseFailure(t *testing.T) {
	m := live.NewMock()
	rec := &chartRecorder{}
	errs := &errRecorder{}
	b := New(m, Options{AckDelay: time.Millisecond, Renderer: rec})
	b.OnError(errs.record)

	if err := b.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	m.SimulateToolCall([]live.FunctionCall{{
		ID:   "call-1",
		Name: capability.NameRenderAltair,
		Args: map[string]any{"json_graph": "{not json"},
	}})

	if len(rec.rendered()) != 0 {
		t.Error("renderer called with an unparseable chart")
	}
	if len(errs.recorded()) != 1 {
		t.Fatalf("reported %d errors, want 1", len(errs.recorded()))
	}

	// The text is held in state and the batch is still acknowledged.
	if got := b.State().ChartJSON; got != "{not json" {
		t.Errorf("ChartJSON = %q, want the raw text", got)
	}
	waitFor(t, time.Second, func() bool {
		return len(m.ResponsesSent()) == 1
	}, "acknowledgment batch")

	// The next valid chart renders normally.
	m.SimulateToolCall([]live.FunctionCall{chartCall("call-2")})
	if len(rec.rendered()) != 1 {
		t.Errorf("rendered %d specs after recovery, want 1", len(rec.rendered()))
	}
}

func TestRenderErrorReported(t *testing.T) {
	m := live.NewMock()
	rec := &chartRecorder{err: errors.New("canvas gone")}
	errs := &errRecorder{}
	b := New(m, Options{AckDelay: time.Millisecond, Renderer: rec})
	b.OnError(errs.record)

	if err := b.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	m.SimulateToolCall([]live.FunctionCall{chartCall("call-1")})

	got := errs.recorded()
	if len(got) != 1 {
		t.Fatalf("reported %d errors, want 1", len(got))
	}
	if !errors.Is(got[0], rec.err) {
		t.Errorf("reported error = %v, want wrapped %v", got[0], rec.err)
	}
}

func TestAckSendFailureReported(t *testing.T) {
	m := live.NewMock()
	errs := &errRecorder{}
	m.SendToolResponsesFunc = func(batch []live.FunctionResponse) error {
		return live.ErrNotConnected
	}

	b := New(m, Options{AckDelay: time.Millisecond})
	b.OnError(errs.record)

	if err := b.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	m.SimulateToolCall([]live.FunctionCall{chartCall("call-1")})

	waitFor(t, time.Second, func() bool {
		return len(errs.recorded()) == 1
	}, "acknowledgment failure report")

	if !errors.Is(errs.recorded()[0], live.ErrNotConnected) {
		t.Errorf("reported error = %v, want ErrNotConnected", errs.recorded()[0])
	}
}

func TestAcksBatchedPerArrival(t *testing.T) {
	m := live.NewMock()
	b := New(m, Options{AckDelay: time.Millisecond})

	if err := b.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	m.SimulateToolCall([]live.FunctionCall{chartCall("call-1"), inspectCall("call-2")})
	m.SimulateToolCall([]live.FunctionCall{chartCall("call-3")})

	waitFor(t, time.Second, func() bool {
		return len(m.ResponsesSent()) == 2
	}, "two acknowledgment batches")

	sent := m.ResponsesSent()
	if len(sent[0]) != 2 || len(sent[1]) != 1 {
		t.Errorf("batch sizes = %d,%d, want 2,1", len(sent[0]), len(sent[1]))
	}
}

func TestOnStateChange(t *testing.T) {
	m := live.NewMock()
	b := New(m, Options{AckDelay: time.Millisecond})

	var states []display.State
	b.OnStateChange(func(st display.State) {
		states = append(states, st)
	})

	if err := b.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	m.SimulateToolCall([]live.FunctionCall{chartCall("call-1")})
	m.SimulateToolCall([]live.FunctionCall{inspectCall("call-2")})
	m.SimulateToolCall([]live.FunctionCall{{ID: "call-3", Name: "set_volume"}})

	if len(states) != 2 {
		t.Fatalf("observed %d state changes, want 2", len(states))
	}
	if states[0].Mode != display.ModeChart || states[1].Mode != display.ModeInspection {
		t.Errorf("state sequence = %+v", states)
	}
}

func BenchmarkHandleToolCall(b *testing.B) {
	m := live.NewMock()
	br := New(m, Options{AckDelay: time.Hour})
	if err := br.Start(); err != nil {
		b.Fatalf("Start() error = %v", err)
	}
	defer br.Stop()

	batch := []live.FunctionCall{chartCall("call-1")}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		br.handleToolCall(batch)
	}
}
