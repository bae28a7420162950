package extractor

import (
	"fmt"
	"strings"

	"call-analytics-go/internal/types"
)

// Every prompt opens with a task header; the mock completer routes on it.
const (
	taskIntake  = "TASK: CALL_INTAKE"
	taskSummary = "TASK: CALL_SUMMARY"
	taskScoring = "TASK: QUALITY_SCORING"
)

// intakeTextLimit caps how much transcript is sent for validation.
const intakeTextLimit = 2000

func buildIntakePrompt(text string) string {
	if len(text) > intakeTextLimit {
		text = text[:intakeTextLimit]
	}
	return fmt.Sprintf(`%s
You are a call center quality assurance expert with two tasks:

1. VALIDATION: decide whether this is a real call center conversation
   between an agent and a customer.
   Invalid: music or lyrics, noise descriptions, monologues, gibberish,
   creative writing.
2. EXTRACTION: if valid, extract call metadata. Use null for anything
   that is not stated. Never guess a name.

TEXT TO ANALYZE:
%s

Return ONLY JSON:
{
  "is_valid": true,
  "validation_reason": "",
  "metadata": {
    "call_id": null,
    "caller_name": null,
    "agent_name": null,
    "call_duration": null,
    "date_time": null
  }
}
`, taskIntake, text)
}

func buildSummaryPrompt(turns []types.Turn, md *types.Metadata) string {
	return fmt.Sprintf(`%s
You are an expert call center analyst. Summarize the conversation below.

%s
Conversation:
%s

Return ONLY JSON:
{
  "brief_summary": "",
  "key_points": [],
  "customer_issue": "",
  "resolution": "",
  "action_items": []
}
`, taskSummary, metadataBlock(md), types.RenderTurns(turns))
}

func buildScoringPrompt(turns []types.Turn, summary *types.Summary, md *types.Metadata) string {
	var sb strings.Builder
	if summary != nil {
		sb.WriteString("Call Summary:\n")
		sb.WriteString(summary.Brief)
		sb.WriteString("\n\nKey Points:\n")
		for _, p := range summary.KeyPoints {
			sb.WriteString("- " + p + "\n")
		}
		fmt.Fprintf(&sb, "\nCustomer Issue: %s\nResolution: %s\n", orNA(summary.CustomerIssue), orNA(summary.Resolution))
	}

	return fmt.Sprintf(`%s
You are an expert call center quality assurance analyst. Score the call
with the rubric below, 0-10 per criterion.

%s
Conversation:
%s

%s
RUBRIC:
1. TONE AND EMPATHY: 9-10 warm and understanding throughout, 5-6 neutral,
   0-2 cold or dismissive.
2. PROFESSIONALISM: 9-10 courteous and precise, 5-6 adequate,
   0-2 unprofessional language.
3. RESOLUTION: for problem calls, was the issue resolved; for
   informational calls, was the question fully answered.
4. RESPONSE APPROPRIATENESS: relevance and clarity of every reply.

Adapt to the call type. Omit a criterion rather than inventing a score.

Return ONLY JSON:
{
  "tone_score": 0,
  "professionalism_score": 0,
  "resolution_score": 0,
  "response_time_score": 0,
  "feedback": "",
  "strengths": [],
  "areas_for_improvement": []
}
`, taskScoring, metadataBlock(md), types.RenderTurns(turns), sb.String())
}

func metadataBlock(md *types.Metadata) string {
	agent, caller, duration := "Unknown", "Unknown", "N/A"
	if name, ok := md.Agent(); ok {
		agent = name
	}
	if md != nil {
		if md.CallerName != "" {
			caller = md.CallerName
		}
		if md.Duration != "" {
			duration = md.Duration
		}
	}
	return fmt.Sprintf("Call Metadata:\n- Agent: %s\n- Caller: %s\n- Duration: %s\n", agent, caller, duration)
}

func orNA(s string) string {
	if strings.TrimSpace(s) == "" {
		return "N/A"
	}
	return s
}
