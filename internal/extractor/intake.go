package extractor

import (
	"context"
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"call-analytics-go/internal/logger"
	"call-analytics-go/internal/processor"
	"call-analytics-go/internal/types"
)

const (
	minTranscriptChars = 50
	maxTranscriptChars = 100000
	minTranscriptWords = 20
	maxSpecialRatio    = 0.3
	minUniqueRatio     = 0.3
)

var dialogueMarkers = []string{
	"agent:", "caller:", "customer:", "representative:", "client:",
	"support:", "service:", "operator:", "rep:", "csr:",
	"agent -", "caller -", "customer -",
}

var musicMarkers = []string{
	"[music playing]", "[instrumental]", "lyrics:", "verse:", "chorus:",
	"🎵", "♪", "♫", "song:", "album:", "artist:",
}

// PreValidate runs cheap heuristics before any model call. It returns an
// empty string when text looks like a conversation.
func PreValidate(text string) string {
	trimmed := strings.TrimSpace(text)
	lower := strings.ToLower(trimmed)
	chars := utf8.RuneCountInString(trimmed)

	if !utf8.ValidString(text) {
		return "transcript contains invalid characters or encoding issues"
	}
	if chars < minTranscriptChars {
		return fmt.Sprintf("transcript too short (minimum %d characters)", minTranscriptChars)
	}
	if chars > maxTranscriptChars {
		return fmt.Sprintf("transcript too long (%d characters, maximum %d)", chars, maxTranscriptChars)
	}

	hasMarker := false
	for _, m := range dialogueMarkers {
		if strings.Contains(lower, m) {
			hasMarker = true
			break
		}
	}
	sentences := strings.Count(text, ".") + strings.Count(text, "!") + strings.Count(text, "?")
	if !hasMarker && sentences < 3 {
		return "does not appear to be a conversation (no speaker labels or dialogue detected)"
	}

	for _, m := range musicMarkers {
		if strings.Contains(lower, m) {
			return "appears to be music or lyrics, not a call center conversation"
		}
	}

	special, total := 0, 0
	for _, r := range text {
		total++
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && !unicode.IsSpace(r) {
			special++
		}
	}
	if total > 0 && float64(special)/float64(total) > maxSpecialRatio {
		return "transcript contains excessive special characters or appears to be gibberish"
	}

	words := strings.Fields(trimmed)
	if len(words) < minTranscriptWords {
		return fmt.Sprintf("transcript too short (%d words, minimum %d)", len(words), minTranscriptWords)
	}
	if len(words) > 10 {
		unique := make(map[string]struct{}, len(words))
		for _, w := range words {
			unique[w] = struct{}{}
		}
		if float64(len(unique))/float64(len(words)) < minUniqueRatio {
			return "transcript appears to be repetitive or spam"
		}
	}
	return ""
}

// IntakeExtractor validates a transcript and pulls call metadata from it
// with a single model call.
type IntakeExtractor struct {
	llm Completer
	log *logrus.Entry
}

func NewIntakeExtractor(llm Completer, log *logrus.Entry) *IntakeExtractor {
	if log == nil {
		log = logger.Discard().Component("intake")
	}
	return &IntakeExtractor{llm: llm, log: log}
}

type intakeResponse struct {
	IsValid          bool   `json:"is_valid"`
	ValidationReason string `json:"validation_reason"`
	Metadata         *struct {
		CallID       *string `json:"call_id"`
		CallerName   *string `json:"caller_name"`
		AgentName    *string `json:"agent_name"`
		CallDuration *string `json:"call_duration"`
		DateTime     *string `json:"date_time"`
	} `json:"metadata"`
}

// Extract returns normalized turns whenever the text parses, even when
// validation or the model call fails.
func (x *IntakeExtractor) Extract(ctx context.Context, text string) (processor.IntakeResult, error) {
	var res processor.IntakeResult

	if reason := PreValidate(text); reason != "" {
		x.log.WithField("reason", reason).Info("transcript failed pre-validation")
		return res, &types.ValidationError{Reason: reason}
	}
	res.Turns = NormalizeTurns(types.ParseTurns(text))

	content, err := x.llm.Complete(ctx, buildIntakePrompt(text))
	if err != nil {
		return res, err
	}

	var parsed intakeResponse
	if err := decodeJSON(content, &parsed); err != nil {
		return res, &types.ValidationError{Reason: "unable to validate transcript: " + err.Error()}
	}
	if !parsed.IsValid {
		reason := strings.TrimSpace(parsed.ValidationReason)
		if reason == "" {
			reason = "not a call center conversation"
		}
		return res, &types.ValidationError{Reason: reason}
	}

	md := &types.Metadata{}
	if m := parsed.Metadata; m != nil {
		md.AgentName = cleanField(m.AgentName)
		md.CallerName = deref(cleanField(m.CallerName))
		md.Duration = deref(cleanField(m.CallDuration))
		md.CallTime = deref(cleanField(m.DateTime))
		md.ExternalID = deref(cleanField(m.CallID))
	}
	res.Metadata = md
	return res, nil
}

var speakerAliases = map[string]string{
	"agent":            "Agent",
	"representative":   "Agent",
	"rep":              "Agent",
	"csr":              "Agent",
	"support":          "Agent",
	"support agent":    "Agent",
	"customer service": "Agent",
	"operator":         "Agent",
	"service":          "Agent",
	"caller":           "Customer",
	"customer":         "Customer",
	"client":           "Customer",
}

// NormalizeTurns maps common speaker labels onto Agent/Customer and merges
// consecutive turns by the same speaker.
func NormalizeTurns(turns []types.Turn) []types.Turn {
	out := make([]types.Turn, 0, len(turns))
	for _, t := range turns {
		speaker := strings.TrimSpace(t.Speaker)
		if alias, ok := speakerAliases[strings.ToLower(speaker)]; ok {
			speaker = alias
		}
		text := strings.TrimSpace(t.Text)
		if text == "" {
			continue
		}
		if n := len(out); n > 0 && out[n-1].Speaker == speaker {
			out[n-1].Text += " " + text
			continue
		}
		out = append(out, types.Turn{Speaker: speaker, Text: text})
	}
	return out
}

// cleanField drops the placeholder values models emit for unknown fields.
func cleanField(v *string) *string {
	if v == nil {
		return nil
	}
	s := strings.TrimSpace(*v)
	switch strings.ToLower(s) {
	case "", "null", "none", "unknown", "n/a", "na", "not mentioned", "not provided":
		return nil
	}
	return &s
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
