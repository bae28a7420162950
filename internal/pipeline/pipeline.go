// internal/pipeline/pipeline.go
package pipeline

import (
	"fmt"

	"call-analytics-go/internal/types"
)

// Stage is a state of the fixed call pipeline.
type Stage string

const (
	Entry           Stage = "ENTRY"
	Transcribing    Stage = "TRANSCRIBING"
	SafetyCheck     Stage = "SAFETY_CHECK"
	FlaggedTerminal Stage = "FLAGGED_TERMINAL"
	Intake          Stage = "INTAKE"
	Summarizing     Stage = "SUMMARIZING"
	Scoring         Stage = "SCORING"
	Persisting      Stage = "PERSISTING"
)

// transitions is the complete routing table. Anything not listed here is an
// illegal edge.
var transitions = map[Stage][]Stage{
	Entry:           {Transcribing, SafetyCheck},
	Transcribing:    {SafetyCheck, Persisting},
	SafetyCheck:     {FlaggedTerminal, Intake},
	FlaggedTerminal: {Persisting},
	Intake:          {Summarizing},
	Summarizing:     {Scoring},
	Scoring:         {Persisting},
	Persisting:      nil,
}

// Stages lists every state in pipeline order.
var Stages = []Stage{Entry, Transcribing, SafetyCheck, FlaggedTerminal, Intake, Summarizing, Scoring, Persisting}

func Terminal(s Stage) bool {
	return s == Persisting
}

// Allowed reports whether from -> to is an edge of the routing table.
func Allowed(from, to Stage) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Next picks the stage that follows current given the accumulated state.
func Next(current Stage, st *types.CallState) (Stage, error) {
	var next Stage
	switch current {
	case Entry:
		if st.Input.Kind == types.InputAudio {
			next = Transcribing
		} else {
			next = SafetyCheck
		}
	case Transcribing:
		if st.HasTranscript() && !st.ReviewReasons.Has(types.ReasonUnrecoverableInput) {
			next = SafetyCheck
		} else {
			next = Persisting
		}
	case SafetyCheck:
		// anything short of an explicit SAFE verdict is treated as flagged
		if st.Safety.Status == types.SafetySafe {
			next = Intake
		} else {
			next = FlaggedTerminal
		}
	case FlaggedTerminal:
		next = Persisting
	case Intake:
		next = Summarizing
	case Summarizing:
		next = Scoring
	case Scoring:
		next = Persisting
	case Persisting:
		return Persisting, fmt.Errorf("%s is terminal", current)
	default:
		return Persisting, fmt.Errorf("unknown stage %q", current)
	}
	if !Allowed(current, next) {
		return Persisting, fmt.Errorf("illegal transition %s -> %s", current, next)
	}
	return next, nil
}
