package types

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type InputKind string

const (
	InputAudio InputKind = "audio"
	InputText  InputKind = "text"
)

// RawInput is the accepted call payload. Exactly one of Audio or Text is set.
type RawInput struct {
	Kind   InputKind `json:"kind"`
	Audio  []byte    `json:"-"`
	Format string    `json:"format,omitempty"`
	Text   string    `json:"text,omitempty"`
}

func AudioInput(payload []byte, format string) RawInput {
	return RawInput{
		Kind:   InputAudio,
		Audio:  payload,
		Format: strings.ToLower(strings.TrimPrefix(strings.TrimSpace(format), ".")),
	}
}

func TextInput(text string) RawInput {
	return RawInput{Kind: InputText, Text: text}
}

// Validate enforces the one-payload rule.
func (r RawInput) Validate() error {
	switch r.Kind {
	case InputAudio:
		if len(r.Audio) == 0 {
			return errors.New("audio input has no payload")
		}
		if r.Format == "" {
			return errors.New("audio input has no format tag")
		}
		if r.Text != "" {
			return errors.New("audio input must not carry text")
		}
	case InputText:
		if strings.TrimSpace(r.Text) == "" {
			return errors.New("text input is empty")
		}
		if len(r.Audio) > 0 {
			return errors.New("text input must not carry audio")
		}
	default:
		return fmt.Errorf("unknown input kind %q", r.Kind)
	}
	return nil
}

type Turn struct {
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

type SafetyStatus string

const (
	SafetyUnchecked SafetyStatus = "UNCHECKED"
	SafetySafe      SafetyStatus = "SAFE"
	SafetyFlagged   SafetyStatus = "FLAGGED"
)

// UnknownCategory is used when a flag is raised without a known cause,
// e.g. when the moderation capability itself failed.
const UnknownCategory = "unknown"

type SafetyVerdict struct {
	Status     SafetyStatus `json:"status"`
	Categories []string     `json:"categories,omitempty"`
}

func Safe() SafetyVerdict {
	return SafetyVerdict{Status: SafetySafe}
}

// Flagged builds a FLAGGED verdict with deduplicated, sorted categories.
func Flagged(categories ...string) SafetyVerdict {
	cats := normalizeLabels(categories)
	if len(cats) == 0 {
		cats = []string{UnknownCategory}
	}
	return SafetyVerdict{Status: SafetyFlagged, Categories: cats}
}

func (v SafetyVerdict) IsFlagged() bool {
	return v.Status == SafetyFlagged
}

// Metadata as produced by intake extraction. AgentName stays nil when the
// agent could not be identified.
type Metadata struct {
	CallerName string  `json:"caller_name,omitempty"`
	AgentName  *string `json:"agent_name"`
	Duration   string  `json:"call_duration,omitempty"`
	CallTime   string  `json:"date_time,omitempty"`
	ExternalID string  `json:"external_id,omitempty"`
}

// Agent returns the trimmed agent name and whether one is present.
func (m *Metadata) Agent() (string, bool) {
	if m == nil || m.AgentName == nil {
		return "", false
	}
	name := strings.TrimSpace(*m.AgentName)
	return name, name != ""
}

type Summary struct {
	Brief         string   `json:"brief_summary"`
	KeyPoints     []string `json:"key_points"`
	CustomerIssue string   `json:"customer_issue,omitempty"`
	Resolution    string   `json:"resolution,omitempty"`
	ActionItems   []string `json:"action_items"`
}

type StageError struct {
	Stage   string    `json:"stage"`
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"message"`
}

// CallState is the single record threaded through every stage. It is owned
// by one pipeline run and mutated in place.
type CallState struct {
	CallID          string        `json:"call_id"`
	Input           RawInput      `json:"input"`
	ReceivedAt      time.Time     `json:"received_at"`
	Transcript      []Turn        `json:"transcript,omitempty"`
	NormalizedTurns []Turn        `json:"normalized_turns,omitempty"`
	Safety          SafetyVerdict `json:"safety"`
	Metadata        *Metadata     `json:"metadata,omitempty"`
	Summary         *Summary      `json:"summary,omitempty"`
	Quality         *Quality      `json:"quality,omitempty"`
	ReviewReasons   ReviewReasons `json:"manual_review_reasons"`
	StageErrors     []StageError  `json:"stage_errors,omitempty"`
}

var (
	ErrTranscriptSet = errors.New("transcript already set")
	ErrSafetySet     = errors.New("safety verdict already set")
)

// NewCallState accepts raw input into the pipeline. An empty callID gets a
// generated one.
func NewCallState(callID string, input RawInput) (*CallState, error) {
	if err := input.Validate(); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	callID = strings.TrimSpace(callID)
	if callID == "" {
		callID = NewCallID()
	}
	return &CallState{
		CallID:     callID,
		Input:      input,
		ReceivedAt: time.Now().UTC(),
		Safety:     SafetyVerdict{Status: SafetyUnchecked},
	}, nil
}

func NewCallID() string {
	return uuid.NewString()
}

func (s *CallState) HasTranscript() bool {
	return len(s.Transcript) > 0
}

func (s *CallState) SetTranscript(turns []Turn) error {
	if s.HasTranscript() {
		return ErrTranscriptSet
	}
	s.Transcript = append([]Turn(nil), turns...)
	return nil
}

func (s *CallState) SetSafety(v SafetyVerdict) error {
	if s.Safety.Status != SafetyUnchecked && s.Safety.Status != "" {
		return ErrSafetySet
	}
	s.Safety = v
	return nil
}

func (s *CallState) Flagged() bool {
	return s.Safety.IsFlagged()
}

func (s *CallState) AddReason(r ReviewReason) {
	s.ReviewReasons.Add(r)
}

// RecordError appends to the stage error log.
func (s *CallState) RecordError(stage string, err error) {
	if err == nil {
		return
	}
	s.StageErrors = append(s.StageErrors, StageError{
		Stage:   stage,
		Kind:    KindOf(err),
		Message: err.Error(),
	})
}

// Turns prefers intake-normalized turns over the raw transcript.
func (s *CallState) Turns() []Turn {
	if len(s.NormalizedTurns) > 0 {
		return s.NormalizedTurns
	}
	return s.Transcript
}

// TranscriptText renders the raw transcript, falling back to the input text.
func (s *CallState) TranscriptText() string {
	if !s.HasTranscript() {
		return s.Input.Text
	}
	return RenderTurns(s.Transcript)
}

func (s *CallState) AgentName() (string, bool) {
	return s.Metadata.Agent()
}
