package extractor

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"call-analytics-go/internal/logger"
	"call-analytics-go/internal/types"
)

type Summarizer struct {
	llm Completer
	log *logrus.Entry
}

func NewSummarizer(llm Completer, log *logrus.Entry) *Summarizer {
	if log == nil {
		log = logger.Discard().Component("summarizer")
	}
	return &Summarizer{llm: llm, log: log}
}

// Summarize asks the model for a structured summary. When the reply is not
// JSON, the sections are recovered from the plain text instead.
func (s *Summarizer) Summarize(ctx context.Context, turns []types.Turn, md *types.Metadata) (*types.Summary, error) {
	if len(turns) == 0 {
		return nil, &types.ValidationError{Reason: "no conversation to summarize"}
	}
	content, err := s.llm.Complete(ctx, buildSummaryPrompt(turns, md))
	if err != nil {
		return nil, err
	}

	var summary types.Summary
	if err := decodeJSON(content, &summary); err == nil && strings.TrimSpace(summary.Brief) != "" {
		return &summary, nil
	} else if err != nil {
		s.log.WithError(err).Warn("summary JSON unusable, parsing sections")
	}
	return parseSummarySections(content, md), nil
}

// parseSummarySections reads a free-form "Brief summary / Key points / ..."
// reply line by line.
func parseSummarySections(raw string, md *types.Metadata) *types.Summary {
	out := &types.Summary{}
	section := ""
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lower := strings.ToLower(line)
		if next, ok := summarySection(lower); ok && !isBullet(line) {
			section = next
			// "Summary: text" carries its content on the heading line
			if idx := strings.Index(line, ":"); idx >= 0 && strings.Trim(line[idx+1:], "*# ") != "" {
				line = strings.Trim(line[idx+1:], "*# ")
			} else {
				continue
			}
		}
		switch section {
		case "summary":
			if out.Brief == "" {
				out.Brief = line
			}
		case "key_points":
			out.KeyPoints = append(out.KeyPoints, trimBullet(line))
		case "issue":
			if out.CustomerIssue == "" {
				out.CustomerIssue = line
			}
		case "resolution":
			if out.Resolution == "" {
				out.Resolution = line
			}
		case "action_items":
			out.ActionItems = append(out.ActionItems, trimBullet(line))
		}
	}

	if out.Brief == "" {
		caller, agent := "customer", "agent"
		if md != nil && md.CallerName != "" {
			caller = md.CallerName
		}
		if name, ok := md.Agent(); ok {
			agent = name
		}
		out.Brief = fmt.Sprintf("Call between %s and %s.", caller, agent)
	}
	if len(out.KeyPoints) == 0 {
		out.KeyPoints = []string{"Call summary unavailable - structured data could not be extracted"}
	}
	return out
}

func summarySection(lower string) (string, bool) {
	switch {
	case strings.Contains(lower, "brief summary") || strings.HasPrefix(lower, "summary:"):
		return "summary", true
	case strings.Contains(lower, "key points"):
		return "key_points", true
	case strings.Contains(lower, "customer issue") || strings.Contains(lower, "main issue"):
		return "issue", true
	case strings.HasPrefix(lower, "resolution"):
		return "resolution", true
	case strings.Contains(lower, "action items") || strings.HasPrefix(lower, "follow-up"):
		return "action_items", true
	}
	return "", false
}

func isBullet(line string) bool {
	return strings.HasPrefix(line, "- ") || strings.HasPrefix(line, "* ") || strings.HasPrefix(line, "•") ||
		(line[0] >= '0' && line[0] <= '9')
}

func trimBullet(line string) string {
	return strings.TrimSpace(strings.TrimLeft(line, "-•* 0123456789.)"))
}
