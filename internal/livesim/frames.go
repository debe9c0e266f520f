package livesim

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownFrame is returned for client frames carrying none of the
// protocol keys.
var ErrUnknownFrame = errors.New("livesim: unknown client frame")

// ToolCall is one invocation to deliver into a session.
type ToolCall struct {
	ID   string         `json:"id,omitempty"`
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// ToolResponse is one acknowledgment recorded from a session.
type ToolResponse struct {
	ID       string         `json:"id"`
	Name     string         `json:"name,omitempty"`
	Response map[string]any `json:"response"`
}

// SetupFrame is the decoded session configuration.
type SetupFrame struct {
	Model        string   `json:"model"`
	Voice        string   `json:"voice"`
	Instruction  string   `json:"instruction"`
	Declarations []string `json:"declarations"`
	GoogleSearch bool     `json:"google_search"`
}

// ClientFrame is one decoded frame from a console. Exactly one of the
// groups is populated.
type ClientFrame struct {
	Setup        *SetupFrame
	Turns        []string
	TurnComplete bool
	MediaChunks  int
	Responses    []ToolResponse
}

// ParseClientFrame decodes a frame the console sends over the session
// socket: setup, client_content, realtime_input or tool_response.
func ParseClientFrame(data []byte) (*ClientFrame, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("livesim: decode frame: %w", err)
	}

	if setup, ok := raw["setup"]; ok {
		return parseSetup(setup)
	}
	if content, ok := raw["client_content"]; ok {
		return parseClientContent(content)
	}
	if input, ok := raw["realtime_input"]; ok {
		return parseRealtimeInput(input)
	}
	if response, ok := raw["tool_response"]; ok {
		return parseToolResponse(response)
	}
	return nil, ErrUnknownFrame
}

func parseSetup(data json.RawMessage) (*ClientFrame, error) {
	var setup struct {
		Model            string `json:"model"`
		GenerationConfig struct {
			SpeechConfig struct {
				VoiceConfig struct {
					PrebuiltVoiceConfig struct {
						VoiceName string `json:"voice_name"`
					} `json:"prebuilt_voice_config"`
				} `json:"voice_config"`
			} `json:"speech_config"`
		} `json:"generation_config"`
		SystemInstruction struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"system_instruction"`
		Tools []struct {
			FunctionDeclarations []struct {
				Name string `json:"name"`
			} `json:"function_declarations"`
			GoogleSearch map[string]any `json:"google_search"`
		} `json:"tools"`
	}
	if err := json.Unmarshal(data, &setup); err != nil {
		return nil, fmt.Errorf("livesim: decode setup: %w", err)
	}

	frame := &SetupFrame{
		Model: setup.Model,
		Voice: setup.GenerationConfig.SpeechConfig.VoiceConfig.PrebuiltVoiceConfig.VoiceName,
	}
	if len(setup.SystemInstruction.Parts) > 0 {
		frame.Instruction = setup.SystemInstruction.Parts[0].Text
	}
	for _, tool := range setup.Tools {
		for _, decl := range tool.FunctionDeclarations {
			frame.Declarations = append(frame.Declarations, decl.Name)
		}
		if tool.GoogleSearch != nil {
			frame.GoogleSearch = true
		}
	}
	return &ClientFrame{Setup: frame}, nil
}

func parseClientContent(data json.RawMessage) (*ClientFrame, error) {
	var content struct {
		Turns []struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"turns"`
		TurnComplete bool `json:"turn_complete"`
	}
	if err := json.Unmarshal(data, &content); err != nil {
		return nil, fmt.Errorf("livesim: decode client_content: %w", err)
	}

	frame := &ClientFrame{TurnComplete: content.TurnComplete}
	for _, turn := range content.Turns {
		for _, part := range turn.Parts {
			if part.Text != "" {
				frame.Turns = append(frame.Turns, part.Text)
			}
		}
	}
	return frame, nil
}

func parseRealtimeInput(data json.RawMessage) (*ClientFrame, error) {
	var input struct {
		MediaChunks []json.RawMessage `json:"media_chunks"`
	}
	if err := json.Unmarshal(data, &input); err != nil {
		return nil, fmt.Errorf("livesim: decode realtime_input: %w", err)
	}
	return &ClientFrame{MediaChunks: len(input.MediaChunks)}, nil
}

func parseToolResponse(data json.RawMessage) (*ClientFrame, error) {
	var response struct {
		FunctionResponses []ToolResponse `json:"function_responses"`
	}
	if err := json.Unmarshal(data, &response); err != nil {
		return nil, fmt.Errorf("livesim: decode tool_response: %w", err)
	}
	return &ClientFrame{Responses: response.FunctionResponses}, nil
}

// SetupCompleteFrame acknowledges a setup frame.
func SetupCompleteFrame() map[string]any {
	return map[string]any{"setupComplete": map[string]any{}}
}

// TextTurnFrame builds a server content frame carrying one model text
// part, optionally closing the turn.
func TextTurnFrame(text string, turnComplete bool) map[string]any {
	content := map[string]any{
		"modelTurn": map[string]any{
			"parts": []map[string]any{
				{"text": text},
			},
		},
	}
	if turnComplete {
		content["turnComplete"] = true
	}
	return map[string]any{"serverContent": content}
}

// ToolCallFrame builds an invocation frame. Every call must already
// carry an id.
func ToolCallFrame(calls []ToolCall) map[string]any {
	wire := make([]map[string]any, 0, len(calls))
	for _, call := range calls {
		item := map[string]any{
			"id":   call.ID,
			"name": call.Name,
		}
		if call.Args != nil {
			item["args"] = call.Args
		}
		wire = append(wire, item)
	}
	return map[string]any{
		"toolCall": map[string]any{
			"functionCalls": wire,
		},
	}
}

// CancellationFrame builds a toolCallCancellation frame for ids whose
// invocations should be abandoned.
func CancellationFrame(ids []string) map[string]any {
	return map[string]any{
		"toolCallCancellation": map[string]any{
			"ids": ids,
		},
	}
}
