package live

import (
	"time"

	"github.com/Robert54/live-api-web-console/pkg/capability"
)

// FunctionCall is one invocation item delivered by the session. The
// agent may batch several items into a single tool-call frame; the
// batch is delivered in arrival order.
type FunctionCall struct {
	// ID identifies this invocation and must be echoed in the
	// matching FunctionResponse.
	ID string `json:"id"`

	// Name is the capability name the agent wants invoked.
	Name string `json:"name"`

	// Args holds the invocation arguments. The shape depends on the
	// capability's declared schema; values arrive as decoded JSON.
	Args map[string]any `json:"args"`
}

// FunctionResponse is one acknowledgment item sent back to the
// session inside a tool_response frame.
type FunctionResponse struct {
	// ID echoes the originating FunctionCall ID.
	ID string `json:"id"`

	// Name echoes the originating capability name.
	Name string `json:"name,omitempty"`

	// Response is the result payload handed back to the agent.
	Response map[string]any `json:"response"`
}

// SessionConfig is everything the setup frame carries besides the
// model: response modality, voice, system instruction and the
// capability set the agent may invoke.
type SessionConfig struct {
	// ResponseModalities lists the modalities the agent answers in.
	// Empty defaults to AUDIO.
	ResponseModalities []string

	// Voice is the prebuilt voice name (Puck, Charon, Kore, Fenrir,
	// Aoede). Empty omits the speech config.
	Voice string

	// SystemInstruction is the behavioral instruction text block.
	SystemInstruction string

	// Declarations are the invokable capabilities to register.
	Declarations []capability.Declaration

	// GoogleSearch additionally enables the built-in search tool.
	GoogleSearch bool
}

// ClientConfig configures a Client.
type ClientConfig struct {
	// APIKey authenticates against the hosted Live API. Required
	// unless Endpoint points somewhere that does not check keys.
	APIKey string

	// Endpoint overrides the Live API WebSocket URL. Empty uses
	// DefaultEndpoint. Overriding lets a local simulator stand in.
	Endpoint string

	// Model is the initial model selection; SelectModel can change
	// it before Connect. Empty uses DefaultModel.
	Model string

	// HandshakeTimeout bounds the WebSocket dial. Zero means 10s.
	HandshakeTimeout time.Duration
}
