package pipeline

import "call-analytics-go/internal/types"

// The classifiers below only ever add reasons; they never clear one.

// ClassifySafety adds CONTENT_UNSAFE for a flagged verdict.
func ClassifySafety(st *types.CallState) bool {
	if st.Flagged() {
		return st.ReviewReasons.Add(types.ReasonContentUnsafe)
	}
	return false
}

// ClassifyIntake adds MISSING_AGENT_NAME when intake left the agent unknown.
func ClassifyIntake(st *types.CallState) bool {
	if _, ok := st.AgentName(); !ok {
		return st.ReviewReasons.Add(types.ReasonMissingAgentName)
	}
	return false
}

// ClassifyScoring adds INCOMPLETE_SCORING when fewer than
// types.MinScoredDimensions dimensions were extracted.
func ClassifyScoring(st *types.CallState) bool {
	if st.Quality.Incomplete() {
		return st.ReviewReasons.Add(types.ReasonIncompleteScoring)
	}
	return false
}

// ClassifyFatalInput marks a call whose raw input could not be used.
func ClassifyFatalInput(st *types.CallState) bool {
	return st.ReviewReasons.Add(types.ReasonUnrecoverableInput)
}
