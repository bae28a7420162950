package types

import (
	"encoding/json"
	"sort"
	"strings"
)

type ReviewReason string

const (
	ReasonContentUnsafe      ReviewReason = "CONTENT_UNSAFE"
	ReasonMissingAgentName   ReviewReason = "MISSING_AGENT_NAME"
	ReasonIncompleteScoring  ReviewReason = "INCOMPLETE_SCORING"
	ReasonUnrecoverableInput ReviewReason = "UNRECOVERABLE_INPUT"
)

// ReviewReasons is a grow-only set. There is deliberately no way to remove a
// member once added.
type ReviewReasons struct {
	items []ReviewReason
}

func NewReviewReasons(reasons ...ReviewReason) ReviewReasons {
	var rr ReviewReasons
	for _, r := range reasons {
		rr.Add(r)
	}
	return rr
}

// Add inserts r, reporting whether the set grew.
func (rr *ReviewReasons) Add(r ReviewReason) bool {
	if r == "" || rr.Has(r) {
		return false
	}
	rr.items = append(rr.items, r)
	return true
}

func (rr ReviewReasons) Has(r ReviewReason) bool {
	for _, it := range rr.items {
		if it == r {
			return true
		}
	}
	return false
}

func (rr ReviewReasons) Len() int { return len(rr.items) }

func (rr ReviewReasons) Empty() bool { return len(rr.items) == 0 }

// List returns a copy in insertion order.
func (rr ReviewReasons) List() []ReviewReason {
	return append([]ReviewReason(nil), rr.items...)
}

// Contains reports whether every member of other is also in rr.
func (rr ReviewReasons) Contains(other ReviewReasons) bool {
	for _, r := range other.items {
		if !rr.Has(r) {
			return false
		}
	}
	return true
}

// Strings returns the members sorted, for stable storage.
func (rr ReviewReasons) Strings() []string {
	out := make([]string, 0, len(rr.items))
	for _, r := range rr.items {
		out = append(out, string(r))
	}
	sort.Strings(out)
	return out
}

func (rr ReviewReasons) String() string {
	return strings.Join(rr.Strings(), ",")
}

func (rr ReviewReasons) MarshalJSON() ([]byte, error) {
	return json.Marshal(rr.Strings())
}

func (rr *ReviewReasons) UnmarshalJSON(data []byte) error {
	var raw []string
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for _, r := range raw {
		rr.Add(ReviewReason(r))
	}
	return nil
}

// ParseReviewReasons reads the comma separated form produced by String.
func ParseReviewReasons(s string) ReviewReasons {
	var rr ReviewReasons
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			rr.Add(ReviewReason(part))
		}
	}
	return rr
}

func normalizeLabels(labels []string) []string {
	seen := map[string]bool{}
	out := []string{}
	for _, l := range labels {
		l = strings.ToLower(strings.TrimSpace(l))
		if l == "" || seen[l] {
			continue
		}
		seen[l] = true
		out = append(out, l)
	}
	sort.Strings(out)
	return out
}
