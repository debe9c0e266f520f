package live

import (
	"context"
	"sync"
)

// Mock is an in-memory stand-in for Client, for testing components
// that consume a session. Behavior methods can be overridden through
// the XxxFunc fields; calls are captured for assertions; Simulate*
// helpers fire the registered callbacks the way the read loop would.
type Mock struct {
	mu sync.RWMutex

	// State
	connected bool

	// Callbacks
	onToolCall             func(batch []FunctionCall)
	onToolCallCancellation func(ids []string)
	onAudio                func(pcm []byte)
	onText                 func(text string)
	onInterrupted          func()
	onTurnComplete         func()
	onSetupComplete        func()
	onError                func(err error)
	onClose                func()

	// Configurable behavior
	ConnectFunc           func(ctx context.Context) error
	CloseFunc             func() error
	SelectModelFunc       func(model string) error
	ConfigureFunc         func(cfg SessionConfig) error
	SendToolResponsesFunc func(batch []FunctionResponse) error
	SendTextFunc          func(text string) error
	SendAudioFunc         func(pcm []byte) error

	// Captured calls for assertions
	SelectedModel    string
	SelectModelCalls int
	Configured       *SessionConfig
	ConfigureCalls   int
	SentResponses    [][]FunctionResponse
	SentTexts        []string
	AudioSent        [][]byte
}

// NewMock creates a new Mock session.
func NewMock() *Mock {
	return &Mock{}
}

// Connect marks the mock connected.
func (m *Mock) Connect(ctx context.Context) error {
	if m.ConnectFunc != nil {
		return m.ConnectFunc(ctx)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = true
	return nil
}

// Close marks the mock disconnected.
func (m *Mock) Close() error {
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
	return nil
}

// IsConnected reports the mock connection state.
func (m *Mock) IsConnected() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.connected
}

// SelectModel records the selected model.
func (m *Mock) SelectModel(model string) error {
	if m.SelectModelFunc != nil {
		return m.SelectModelFunc(model)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SelectedModel = model
	m.SelectModelCalls++
	return nil
}

// Configure records the session configuration.
func (m *Mock) Configure(cfg SessionConfig) error {
	if m.ConfigureFunc != nil {
		return m.ConfigureFunc(cfg)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Configured = &cfg
	m.ConfigureCalls++
	return nil
}

// SendToolResponses records an acknowledgment batch.
func (m *Mock) SendToolResponses(batch []FunctionResponse) error {
	if m.SendToolResponsesFunc != nil {
		return m.SendToolResponsesFunc(batch)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SentResponses = append(m.SentResponses, batch)
	return nil
}

// SendText records a user text turn.
func (m *Mock) SendText(text string) error {
	if m.SendTextFunc != nil {
		return m.SendTextFunc(text)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return ErrNotConnected
	}
	m.SentTexts = append(m.SentTexts, text)
	return nil
}

// SendAudio records an audio chunk.
func (m *Mock) SendAudio(pcm []byte) error {
	if m.SendAudioFunc != nil {
		return m.SendAudioFunc(pcm)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.connected {
		return ErrNotConnected
	}
	m.AudioSent = append(m.AudioSent, pcm)
	return nil
}

// Callback setters, mirroring Client.

// OnToolCall sets the invocation batch handler.
func (m *Mock) OnToolCall(fn func(batch []FunctionCall)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onToolCall = fn
}

// OnToolCallCancellation sets the cancellation handler.
func (m *Mock) OnToolCallCancellation(fn func(ids []string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onToolCallCancellation = fn
}

// OnAudio sets the audio handler.
func (m *Mock) OnAudio(fn func(pcm []byte)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onAudio = fn
}

// OnText sets the text handler.
func (m *Mock) OnText(fn func(text string)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onText = fn
}

// OnInterrupted sets the interruption handler.
func (m *Mock) OnInterrupted(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onInterrupted = fn
}

// OnTurnComplete sets the turn completion handler.
func (m *Mock) OnTurnComplete(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onTurnComplete = fn
}

// OnSetupComplete sets the setup completion handler.
func (m *Mock) OnSetupComplete(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onSetupComplete = fn
}

// OnError sets the error handler.
func (m *Mock) OnError(fn func(err error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onError = fn
}

// OnClose sets the close handler.
func (m *Mock) OnClose(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onClose = fn
}

// HasToolCallHandler reports whether an invocation handler is
// currently subscribed. Lets tests assert unsubscribe-on-teardown.
func (m *Mock) HasToolCallHandler() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.onToolCall != nil
}

// ResponsesSent returns a snapshot of the captured acknowledgment
// batches. Use this instead of SentResponses when the sender runs on
// another goroutine.
func (m *Mock) ResponsesSent() [][]FunctionResponse {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([][]FunctionResponse{}, m.SentResponses...)
}

// Test helpers

// SimulateToolCall delivers an invocation batch to the subscriber.
func (m *Mock) SimulateToolCall(batch []FunctionCall) {
	m.mu.RLock()
	fn := m.onToolCall
	m.mu.RUnlock()
	if fn != nil {
		fn(batch)
	}
}

// SimulateToolCallCancellation delivers a cancellation.
func (m *Mock) SimulateToolCallCancellation(ids []string) {
	m.mu.RLock()
	fn := m.onToolCallCancellation
	m.mu.RUnlock()
	if fn != nil {
		fn(ids)
	}
}

// SimulateAudio delivers an audio chunk.
func (m *Mock) SimulateAudio(pcm []byte) {
	m.mu.RLock()
	fn := m.onAudio
	m.mu.RUnlock()
	if fn != nil {
		fn(pcm)
	}
}

// SimulateText delivers a text part.
func (m *Mock) SimulateText(text string) {
	m.mu.RLock()
	fn := m.onText
	m.mu.RUnlock()
	if fn != nil {
		fn(text)
	}
}

// SimulateInterrupted fires the interruption handler.
func (m *Mock) SimulateInterrupted() {
	m.mu.RLock()
	fn := m.onInterrupted
	m.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

// SimulateTurnComplete fires the turn completion handler.
func (m *Mock) SimulateTurnComplete() {
	m.mu.RLock()
	fn := m.onTurnComplete
	m.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

// SimulateSetupComplete fires the setup completion handler.
func (m *Mock) SimulateSetupComplete() {
	m.mu.RLock()
	fn := m.onSetupComplete
	m.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

// SimulateError fires the error handler.
func (m *Mock) SimulateError(err error) {
	m.mu.RLock()
	fn := m.onError
	m.mu.RUnlock()
	if fn != nil {
		fn(err)
	}
}

// SimulateClose fires the close handler.
func (m *Mock) SimulateClose() {
	m.mu.RLock()
	fn := m.onClose
	m.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

// Reset clears all captured data and state.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
	m.SelectedModel = ""
	m.SelectModelCalls = 0
	m.Configured = nil
	m.ConfigureCalls = 0
	m.SentResponses = nil
	m.SentTexts = nil
	m.AudioSent = nil
}
