// Package display holds the presentation state machine for the
// console: an Empty/Chart/Inspection state with mutual exclusion
// between the two visible variants, and a pure transition function
// over invocation batches. The package does no I/O and owns no
// goroutines, so the state machine is testable on its own.
package display

import (
	"github.com/Robert54/live-api-web-console/pkg/capability"
	"github.com/Robert54/live-api-web-console/pkg/live"
)

// Mode identifies which presentation variant is active.
type Mode int

const (
	// ModeEmpty is the initial state: nothing to show.
	ModeEmpty Mode = iota

	// ModeChart shows a declarative chart specification.
	ModeChart

	// ModeInspection shows a room inspection result.
	ModeInspection
)

// String returns a human-readable mode name.
func (m Mode) String() string {
	switch m {
	case ModeChart:
		return "chart"
	case ModeInspection:
		return "inspection"
	default:
		return "empty"
	}
}

// State is the presentation state. Only the fields of the active
// Mode are meaningful; entering a variant clears the other's fields.
// The zero value is the Empty state.
type State struct {
	Mode       Mode    `json:"mode"`
	ChartJSON  string  `json:"chart_json,omitempty"`
	Assessment string  `json:"assessment,omitempty"`
	Score      float64 `json:"score,omitempty"`
}

// ChartSpec is a parsed chart specification, ready for a renderer.
type ChartSpec map[string]any

// Outcome is the result of reducing one invocation batch.
type Outcome struct {
	// State is the presentation state after the batch.
	State State

	// Applied names the transition that ran: KindChartRender,
	// KindRoomInspect, or KindUnknown when the batch changed nothing.
	Applied capability.Kind

	// InspectionChanged is true when the batch moved the state into
	// or out of ModeInspection.
	InspectionChanged bool

	// Acks holds one acknowledgment per batch item, in batch order.
	// Nil for an empty batch.
	Acks []live.FunctionResponse
}

// Ack builds the fixed success acknowledgment for one invocation
// item, echoing its id and name.
func Ack(item live.FunctionCall) live.FunctionResponse {
	return live.FunctionResponse{
		ID:       item.ID,
		Name:     item.Name,
		Response: map[string]any{"success": true},
	}
}

// Reduce applies one invocation batch to the current state.
//
// For each capability only the first item bearing its name is
// considered; a malformed first item disables that capability's
// transition for the whole batch. When a batch carries both a chart
// and an inspection item the inspection wins. Unknown names never
// transition. Every item is acknowledged regardless of whether it
// transitioned anything.
//
// Reduce is pure: it never mutates cur and has no side effects.
func Reduce(cur State, batch []live.FunctionCall) Outcome {
	var (
		chartSeen, chartValid           bool
		inspectionSeen, inspectionValid bool
		chartText                       string
		assessment                      string
		score                           float64
	)

	for _, item := range batch {
		switch capability.KindOf(item.Name) {
		case capability.KindChartRender:
			if chartSeen {
				continue
			}
			chartSeen = true
			if text, ok := item.Args["json_graph"].(string); ok {
				chartText = text
				chartValid = true
			}
		case capability.KindRoomInspect:
			if inspectionSeen {
				continue
			}
			inspectionSeen = true
			a, okA := item.Args["assessment"].(string)
			s, okS := asNumber(item.Args["score"])
			if okA && okS {
				assessment = a
				score = s
				inspectionValid = true
			}
		}
	}

	out := Outcome{State: cur}
	switch {
	case inspectionValid:
		out.State = State{Mode: ModeInspection, Assessment: assessment, Score: score}
		out.Applied = capability.KindRoomInspect
	case chartValid:
		out.State = State{Mode: ModeChart, ChartJSON: chartText}
		out.Applied = capability.KindChartRender
	}

	out.InspectionChanged = (cur.Mode == ModeInspection) != (out.State.Mode == ModeInspection)

	if len(batch) > 0 {
		out.Acks = make([]live.FunctionResponse, len(batch))
		for i, item := range batch {
			out.Acks[i] = Ack(item)
		}
	}

	return out
}

// asNumber widens the numeric types a score may arrive as. JSON
// decoding yields float64; in-process callers may pass ints.
func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}
