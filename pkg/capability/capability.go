// Package capability declares the capabilities the console registers
// with a live agent session. The set is closed: dispatch elsewhere
// switches on Kind, so adding a capability means adding a declaration,
// a Kind, and a dispatch arm together.
package capability

// Wire names, matched verbatim against incoming invocation items.
const (
	NameRenderAltair = "render_altair"
	NameInspectRoom  = "inspect_room"
)

// Kind identifies a capability this console knows how to handle.
type Kind int

const (
	// KindUnknown is any name outside the declared set. Unknown
	// invocations are acknowledged but never dispatched.
	KindUnknown Kind = iota

	// KindChartRender displays a declarative chart specification.
	KindChartRender

	// KindRoomInspect presents a room cleanliness assessment.
	KindRoomInspect
)

// KindOf maps a wire name to its Kind. Names outside the declared
// set map to KindUnknown.
func KindOf(name string) Kind {
	switch name {
	case NameRenderAltair:
		return KindChartRender
	case NameInspectRoom:
		return KindRoomInspect
	default:
		return KindUnknown
	}
}

// String returns a human-readable name for logging.
func (k Kind) String() string {
	switch k {
	case KindChartRender:
		return "chart_render"
	case KindRoomInspect:
		return "room_inspect"
	default:
		return "unknown"
	}
}

// Property describes one parameter in a capability schema.
type Property struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
}

// Schema is the parameter schema of a capability, serialized in the
// shape the live session's setup payload expects.
type Schema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required"`
}

// Declaration is one capability as registered with the agent session.
// The Description text drives the agent's decision about when to call
// the capability, so it is part of the observable behavior: chart
// requests must map to render_altair and cleanliness or inspection
// requests to inspect_room.
type Declaration struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Parameters  *Schema `json:"parameters,omitempty"`
}

// RenderAltair returns the chart-render declaration. Callers get a
// fresh copy; the registry itself cannot be mutated.
func RenderAltair() Declaration {
	return Declaration{
		Name:        NameRenderAltair,
		Description: "Displays an altair graph in json format.",
		Parameters: &Schema{
			Type: "object",
			Properties: map[string]Property{
				"json_graph": {
					Type:        "string",
					Description: "JSON STRING representation of the graph to render. Must be a string, not a json object",
				},
			},
			Required: []string{"json_graph"},
		},
	}
}

// InspectRoom returns the room-inspection declaration.
func InspectRoom() Declaration {
	return Declaration{
		Name:        NameInspectRoom,
		Description: "Provides a cleanliness assessment and a numeric score for the room currently in view.",
		Parameters: &Schema{
			Type: "object",
			Properties: map[string]Property{
				"assessment": {
					Type:        "string",
					Description: "A one-sentence cleanliness assessment of the room.",
				},
				"score": {
					Type:        "number",
					Description: "Cleanliness score from 0 to 100.",
				},
			},
			Required: []string{"assessment", "score"},
		},
	}
}

// Declarations returns every declared capability in registration
// order, chart first.
func Declarations() []Declaration {
	return []Declaration{RenderAltair(), InspectRoom()}
}
