package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	"call-analytics-go/internal/processor"
	"call-analytics-go/internal/types"
)

// RowError describes a sheet row that could not become a job.
type RowError struct {
	Row    int    `json:"row"`
	CallID string `json:"call_id,omitempty"`
	Reason string `json:"reason"`
}

type columns struct {
	callID, text, audio, format int
}

// detectColumns finds columns by header heuristics.
func detectColumns(header []string) columns {
	c := columns{callID: -1, text: -1, audio: -1, format: -1}
	for i, h := range header {
		l := strings.ToLower(strings.TrimSpace(h))
		switch {
		case strings.Contains(l, "transcript") || l == "text" || strings.Contains(l, "conversation"):
			if c.text == -1 {
				c.text = i
			}
		case strings.Contains(l, "audio") || strings.Contains(l, "file") || strings.Contains(l, "path") || strings.Contains(l, "recording"):
			if c.audio == -1 {
				c.audio = i
			}
		case strings.Contains(l, "format") || strings.Contains(l, "ext"):
			if c.format == -1 {
				c.format = i
			}
		case strings.Contains(l, "call id") || strings.Contains(l, "call_id") || strings.Contains(l, "callid") || l == "id":
			if c.callID == -1 {
				c.callID = i
			}
		}
	}
	return c
}

// Load reads calls from the first sheet of an .xlsx workbook. Each row needs
// either a transcript or an audio file path; relative audio paths resolve
// against the workbook's directory. Rows that cannot be turned into input
// are returned as RowErrors rather than failing the whole load.
func Load(path string) ([]processor.Job, []RowError, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open file: %w", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, nil, fmt.Errorf("no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, nil, fmt.Errorf("read rows: %w", err)
	}
	if len(rows) <= 1 {
		return nil, nil, fmt.Errorf("no data rows")
	}

	cols := detectColumns(rows[0])
	if cols.text == -1 && cols.audio == -1 {
		return nil, nil, fmt.Errorf("no transcript or audio column in header %v", rows[0])
	}
	baseDir := filepath.Dir(path)

	var jobs []processor.Job
	var skipped []RowError
	for i, r := range rows[1:] {
		rowNum := i + 2
		job := processor.Job{CallID: cell(r, cols.callID)}
		text := cell(r, cols.text)
		audioPath := cell(r, cols.audio)

		switch {
		case text != "":
			job.Input = types.TextInput(text)
		case audioPath != "":
			if !filepath.IsAbs(audioPath) {
				audioPath = filepath.Join(baseDir, audioPath)
			}
			payload, err := os.ReadFile(audioPath)
			if err != nil {
				skipped = append(skipped, RowError{Row: rowNum, CallID: job.CallID, Reason: err.Error()})
				continue
			}
			format := cell(r, cols.format)
			if format == "" {
				format = filepath.Ext(audioPath)
			}
			job.Input = types.AudioInput(payload, format)
		default:
			if job.CallID != "" {
				skipped = append(skipped, RowError{Row: rowNum, CallID: job.CallID, Reason: "row has no transcript or audio"})
			}
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, skipped, nil
}

func cell(r []string, idx int) string {
	if idx < 0 || idx >= len(r) {
		return ""
	}
	return strings.TrimSpace(r[idx])
}
