package live

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Robert54/live-api-web-console/internal/log"
)

const (
	// DefaultEndpoint is the Gemini Live BidiGenerateContent
	// WebSocket endpoint.
	DefaultEndpoint = "wss://generativelanguage.googleapis.com/ws/google.ai.generativelanguage.v1beta.GenerativeService.BidiGenerateContent"

	// DefaultModel is the model used when none is selected.
	DefaultModel = "models/gemini-2.0-flash-exp"

	defaultHandshakeTimeout = 10 * time.Second
)

// Client is a Gemini Live session over a WebSocket. Configure the
// session with SelectModel and Configure before Connect; the setup
// frame is the first thing on the wire. Server frames are delivered
// through the On* callbacks from a single read goroutine, in arrival
// order.
type Client struct {
	cfg ClientConfig

	// Write path. Gorilla connections allow one concurrent writer.
	ws   *websocket.Conn
	wsMu sync.Mutex

	// Session state and callbacks.
	mu        sync.RWMutex
	connected bool
	closed    bool
	model     string
	session   SessionConfig

	onToolCall             func(batch []FunctionCall)
	onToolCallCancellation func(ids []string)
	onAudio                func(pcm []byte)
	onText                 func(text string)
	onInterrupted          func()
	onTurnComplete         func()
	onSetupComplete        func()
	onError                func(err error)
	onClose                func()
}

// NewClient creates a Live API client. The hosted endpoint requires
// an API key; a custom Endpoint (such as a local simulator) does not.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.APIKey == "" && cfg.Endpoint == "" {
		return nil, ErrMissingAPIKey
	}
	c := &Client{cfg: cfg}
	c.model = cfg.Model
	if c.model == "" {
		c.model = DefaultModel
	}
	return c, nil
}

// SelectModel sets the model for the session. It must be called
// before Connect; the model cannot change on an established session.
func (c *Client) SelectModel(model string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connected {
		return ErrAlreadyConnected
	}
	if model != "" {
		c.model = model
	}
	return nil
}

// Configure sets the session configuration carried by the setup
// frame. It must be called before Connect.
func (c *Client) Configure(cfg SessionConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.connected {
		return ErrAlreadyConnected
	}
	c.session = cfg
	return nil
}

// Connect dials the endpoint, sends the setup frame and starts the
// read loop. It can be called again after Close to establish a fresh
// session with the same configuration.
func (c *Client) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.connected {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.mu.Unlock()

	endpoint := c.cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	url := endpoint
	if c.cfg.APIKey != "" {
		url = fmt.Sprintf("%s?key=%s", endpoint, c.cfg.APIKey)
	}

	timeout := c.cfg.HandshakeTimeout
	if timeout == 0 {
		timeout = defaultHandshakeTimeout
	}
	dialer := websocket.Dialer{
		HandshakeTimeout: timeout,
	}
	header := make(http.Header)
	header.Set("Content-Type", "application/json")

	ws, _, err := dialer.DialContext(ctx, url, header)
	if err != nil {
		return &ConnectionError{Reason: "dial " + endpoint, Cause: err, Retryable: true}
	}

	c.mu.Lock()
	c.connected = true
	c.closed = false
	c.mu.Unlock()

	c.wsMu.Lock()
	c.ws = ws
	c.wsMu.Unlock()

	if err := c.sendJSON(c.setupFrame()); err != nil {
		c.Close()
		return fmt.Errorf("live: send setup: %w", err)
	}

	go c.readLoop(ws)

	log.Debug("live: connected", "endpoint", endpoint, "model", c.Model())
	return nil
}

// Close terminates the session. It is idempotent; after Close no
// callback fires until a new Connect.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed && !c.connected {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	c.connected = false
	c.mu.Unlock()

	c.wsMu.Lock()
	ws := c.ws
	c.ws = nil
	c.wsMu.Unlock()

	if ws != nil {
		return ws.Close()
	}
	return nil
}

// IsConnected returns true if the session is established.
func (c *Client) IsConnected() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connected && !c.closed
}

// Model returns the model the session runs (or will run) on.
func (c *Client) Model() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.model
}

// Callback setters. Each replaces the previous handler; nil
// unsubscribes. Safe to call while the session is live.

// OnToolCall sets the handler for incoming invocation batches.
func (c *Client) OnToolCall(fn func(batch []FunctionCall)) {
	c.mu.Lock()
	c.onToolCall = fn
	c.mu.Unlock()
}

// OnToolCallCancellation sets the handler for cancelled invocations.
func (c *Client) OnToolCallCancellation(fn func(ids []string)) {
	c.mu.Lock()
	c.onToolCallCancellation = fn
	c.mu.Unlock()
}

// OnAudio sets the handler for decoded PCM16 audio from the agent.
func (c *Client) OnAudio(fn func(pcm []byte)) {
	c.mu.Lock()
	c.onAudio = fn
	c.mu.Unlock()
}

// OnText sets the handler for text parts of the agent's turn.
func (c *Client) OnText(fn func(text string)) {
	c.mu.Lock()
	c.onText = fn
	c.mu.Unlock()
}

// OnInterrupted sets the handler fired when the agent's turn is
// interrupted by user activity.
func (c *Client) OnInterrupted(fn func()) {
	c.mu.Lock()
	c.onInterrupted = fn
	c.mu.Unlock()
}

// OnTurnComplete sets the handler fired when the agent finishes a
// turn.
func (c *Client) OnTurnComplete(fn func()) {
	c.mu.Lock()
	c.onTurnComplete = fn
	c.mu.Unlock()
}

// OnSetupComplete sets the handler fired when the server accepts the
// setup frame.
func (c *Client) OnSetupComplete(fn func()) {
	c.mu.Lock()
	c.onSetupComplete = fn
	c.mu.Unlock()
}

// OnError sets the error handler.
func (c *Client) OnError(fn func(err error)) {
	c.mu.Lock()
	c.onError = fn
	c.mu.Unlock()
}

// OnClose sets the handler fired when the connection drops without a
// local Close.
func (c *Client) OnClose(fn func()) {
	c.mu.Lock()
	c.onClose = fn
	c.mu.Unlock()
}

// SendToolResponses acknowledges invocations back to the agent. The
// batch is sent as a single tool_response frame.
func (c *Client) SendToolResponses(batch []FunctionResponse) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	if len(batch) == 0 {
		return nil
	}
	msg := map[string]any{
		"tool_response": map[string]any{
			"function_responses": batch,
		},
	}
	if err := c.sendJSON(msg); err != nil {
		return fmt.Errorf("live: send tool responses: %w", err)
	}
	return nil
}

// SendText sends a user text turn to the agent.
func (c *Client) SendText(text string) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	msg := map[string]any{
		"client_content": map[string]any{
			"turns": []map[string]any{
				{
					"role": "user",
					"parts": []map[string]any{
						{"text": text},
					},
				},
			},
			"turn_complete": true,
		},
	}
	if err := c.sendJSON(msg); err != nil {
		return fmt.Errorf("live: send text: %w", err)
	}
	return nil
}

// SendAudio streams PCM16 audio to the agent. Gemini expects 16kHz
// mono.
func (c *Client) SendAudio(pcm []byte) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}
	msg := map[string]any{
		"realtime_input": map[string]any{
			"media_chunks": []map[string]any{
				{
					"data":      base64.StdEncoding.EncodeToString(pcm),
					"mime_type": "audio/pcm",
				},
			},
		},
	}
	if err := c.sendJSON(msg); err != nil {
		return fmt.Errorf("live: send audio: %w", err)
	}
	return nil
}

// setupFrame builds the initial configuration frame from the selected
// model and session config.
func (c *Client) setupFrame() map[string]any {
	c.mu.RLock()
	model := c.model
	session := c.session
	c.mu.RUnlock()

	modalities := session.ResponseModalities
	if len(modalities) == 0 {
		modalities = []string{"AUDIO"}
	}

	generation := map[string]any{
		"response_modalities": modalities,
	}
	if session.Voice != "" {
		generation["speech_config"] = map[string]any{
			"voice_config": map[string]any{
				"prebuilt_voice_config": map[string]any{
					"voice_name": session.Voice,
				},
			},
		}
	}

	setup := map[string]any{
		"model":             model,
		"generation_config": generation,
	}

	if session.SystemInstruction != "" {
		setup["system_instruction"] = map[string]any{
			"parts": []map[string]any{
				{"text": session.SystemInstruction},
			},
		}
	}

	var tools []map[string]any
	if len(session.Declarations) > 0 {
		tools = append(tools, map[string]any{
			"function_declarations": session.Declarations,
		})
	}
	if session.GoogleSearch {
		tools = append(tools, map[string]any{
			"google_search": map[string]any{},
		})
	}
	if len(tools) > 0 {
		setup["tools"] = tools
	}

	return map[string]any{"setup": setup}
}

// readLoop processes incoming frames until the connection ends.
func (c *Client) readLoop(ws *websocket.Conn) {
	for {
		c.mu.RLock()
		closed := c.closed
		c.mu.RUnlock()
		if closed {
			return
		}

		_, message, err := ws.ReadMessage()
		if err != nil {
			c.mu.Lock()
			wasClosed := c.closed
			c.connected = false
			onError := c.onError
			onClose := c.onClose
			c.mu.Unlock()

			if !wasClosed {
				if onError != nil {
					onError(&ConnectionError{Reason: "read", Cause: err, Retryable: true})
				}
				if onClose != nil {
					onClose()
				}
			}
			return
		}

		var frame map[string]any
		if err := json.Unmarshal(message, &frame); err != nil {
			log.Debug("live: discarding unparseable frame", "error", err)
			continue
		}

		c.handleFrame(frame)
	}
}

// handleFrame dispatches a single server frame.
func (c *Client) handleFrame(frame map[string]any) {
	if _, ok := frame["setupComplete"]; ok {
		if fn := c.setupCompleteHandler(); fn != nil {
			fn()
		}
		return
	}

	if content, ok := frame["serverContent"].(map[string]any); ok {
		c.handleServerContent(content)
		return
	}

	if toolCall, ok := frame["toolCall"].(map[string]any); ok {
		c.handleToolCall(toolCall)
		return
	}

	if cancellation, ok := frame["toolCallCancellation"].(map[string]any); ok {
		c.handleToolCallCancellation(cancellation)
		return
	}

	keys := make([]string, 0, len(frame))
	for k := range frame {
		keys = append(keys, k)
	}
	log.Debug("live: unhandled frame", "keys", strings.Join(keys, ","))
}

// handleServerContent processes audio, text and turn markers. A single
// frame may carry a model turn and the turnComplete marker together,
// so parts are delivered before the marker fires.
func (c *Client) handleServerContent(content map[string]any) {
	if interrupted, ok := content["interrupted"].(bool); ok && interrupted {
		c.mu.RLock()
		fn := c.onInterrupted
		c.mu.RUnlock()
		if fn != nil {
			fn()
		}
	}

	if modelTurn, ok := content["modelTurn"].(map[string]any); ok {
		if parts, ok := modelTurn["parts"].([]any); ok {
			c.handleParts(parts)
		}
	}

	if turnComplete, ok := content["turnComplete"].(bool); ok && turnComplete {
		c.mu.RLock()
		fn := c.onTurnComplete
		c.mu.RUnlock()
		if fn != nil {
			fn()
		}
	}
}

// handleParts delivers the audio and text parts of a model turn.
func (c *Client) handleParts(parts []any) {
	for _, part := range parts {
		partMap, ok := part.(map[string]any)
		if !ok {
			continue
		}

		if inlineData, ok := partMap["inlineData"].(map[string]any); ok {
			mimeType, _ := inlineData["mimeType"].(string)
			if strings.HasPrefix(mimeType, "audio/pcm") {
				if data, ok := inlineData["data"].(string); ok {
					pcm, err := base64.StdEncoding.DecodeString(data)
					if err == nil && len(pcm) > 0 {
						c.mu.RLock()
						fn := c.onAudio
						c.mu.RUnlock()
						if fn != nil {
							fn(pcm)
						}
					}
				}
			}
		}

		if text, ok := partMap["text"].(string); ok && text != "" {
			c.mu.RLock()
			fn := c.onText
			c.mu.RUnlock()
			if fn != nil {
				fn(text)
			}
		}
	}
}

// handleToolCall converts a toolCall frame into a FunctionCall batch
// and delivers it as one unit, preserving item order.
func (c *Client) handleToolCall(toolCall map[string]any) {
	rawCalls, ok := toolCall["functionCalls"].([]any)
	if !ok {
		return
	}

	batch := make([]FunctionCall, 0, len(rawCalls))
	for _, raw := range rawCalls {
		fc, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		id, _ := fc["id"].(string)
		name, _ := fc["name"].(string)
		args, _ := fc["args"].(map[string]any)
		batch = append(batch, FunctionCall{ID: id, Name: name, Args: args})
	}

	if len(batch) == 0 {
		return
	}

	log.Debug("live: tool call batch", "size", len(batch), "first", batch[0].Name)

	c.mu.RLock()
	fn := c.onToolCall
	c.mu.RUnlock()
	if fn != nil {
		fn(batch)
	}
}

// handleToolCallCancellation extracts cancelled invocation ids.
func (c *Client) handleToolCallCancellation(cancellation map[string]any) {
	rawIDs, ok := cancellation["ids"].([]any)
	if !ok {
		return
	}
	ids := make([]string, 0, len(rawIDs))
	for _, raw := range rawIDs {
		if id, ok := raw.(string); ok {
			ids = append(ids, id)
		}
	}

	c.mu.RLock()
	fn := c.onToolCallCancellation
	c.mu.RUnlock()
	if fn != nil {
		fn(ids)
	}
}

func (c *Client) setupCompleteHandler() func() {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.onSetupComplete
}

// sendJSON writes one frame under the write mutex.
func (c *Client) sendJSON(v any) error {
	c.wsMu.Lock()
	defer c.wsMu.Unlock()
	if c.ws == nil {
		return ErrNotConnected
	}
	return c.ws.WriteJSON(v)
}
