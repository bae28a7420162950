package types

import (
	"strings"
	"unicode"
)

// UnknownSpeaker labels text that carries no recognizable speaker prefix.
const UnknownSpeaker = "Unknown"

const maxSpeakerLabelLen = 32

// ParseTurns splits "Speaker: text" lines into turns. Lines without a label
// continue the previous turn.
func ParseTurns(text string) []Turn {
	var turns []Turn
	text = strings.ReplaceAll(text, "\r\n", "\n")
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if speaker, said, ok := splitSpeaker(line); ok {
			turns = append(turns, Turn{Speaker: speaker, Text: said})
			continue
		}
		if len(turns) == 0 {
			turns = append(turns, Turn{Speaker: UnknownSpeaker, Text: line})
			continue
		}
		last := &turns[len(turns)-1]
		last.Text = strings.TrimSpace(last.Text + " " + line)
	}
	return turns
}

func splitSpeaker(line string) (string, string, bool) {
	idx, sepLen := strings.Index(line, ":"), 1
	if idx < 0 {
		idx, sepLen = strings.Index(line, " - "), 3
	}
	if idx <= 0 || idx > maxSpeakerLabelLen {
		return "", "", false
	}
	label := strings.TrimSpace(line[:idx])
	if label == "" {
		return "", "", false
	}
	for _, r := range label {
		if !unicode.IsLetter(r) && r != ' ' && r != '_' && r != '.' {
			return "", "", false
		}
	}
	if len(strings.Fields(label)) > 3 {
		return "", "", false
	}
	return label, strings.TrimSpace(line[idx+sepLen:]), true
}

func RenderTurns(turns []Turn) string {
	var b strings.Builder
	for i, t := range turns {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(t.Speaker)
		b.WriteString(": ")
		b.WriteString(t.Text)
	}
	return b.String()
}
