package extractor

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
)

var agentIntro = regexp.MustCompile(`(?i:my name is|this is|i am|i'm)\s+([A-Z][a-z]+)`)

// MockCompleter returns deterministic replies for offline demos
// (USE_MOCK_LLM=true). It routes on the prompt's task header.
type MockCompleter struct{}

func (MockCompleter) Complete(_ context.Context, prompt string) (string, error) {
	switch {
	case strings.HasPrefix(prompt, taskIntake):
		return mockIntake(prompt), nil
	case strings.HasPrefix(prompt, taskSummary):
		return `{
  "brief_summary": "Customer called about a billing discrepancy; the agent explained the charge and issued a credit.",
  "key_points": ["Duplicate charge on latest invoice", "Agent verified account", "Credit issued"],
  "customer_issue": "Charged twice for the same month",
  "resolution": "Duplicate charge refunded as account credit",
  "action_items": ["Confirm credit appears on next statement"]
}`, nil
	case strings.HasPrefix(prompt, taskScoring):
		return `{
  "tone_score": 8,
  "professionalism_score": 9,
  "resolution_score": 8,
  "response_time_score": 7,
  "feedback": "Friendly and efficient call with a clear resolution.",
  "strengths": ["Verified the account quickly", "Explained the fix clearly"],
  "areas_for_improvement": ["Offer a follow-up contact"]
}`, nil
	}
	return "{}", nil
}

// mockIntake only reports an agent name when an agent turn introduces one.
func mockIntake(prompt string) string {
	type metadata struct {
		AgentName  *string `json:"agent_name"`
		CallerName *string `json:"caller_name"`
	}
	out := struct {
		IsValid          bool     `json:"is_valid"`
		ValidationReason string   `json:"validation_reason"`
		Metadata         metadata `json:"metadata"`
	}{IsValid: true, ValidationReason: "agent and customer dialogue"}

	for _, line := range strings.Split(prompt, "\n") {
		lower := strings.ToLower(strings.TrimSpace(line))
		if !strings.HasPrefix(lower, "agent") && !strings.HasPrefix(lower, "representative") {
			continue
		}
		if m := agentIntro.FindStringSubmatch(line); m != nil {
			name := m[1]
			out.Metadata.AgentName = &name
			break
		}
	}
	data, _ := json.Marshal(out)
	return string(data)
}
