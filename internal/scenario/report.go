package scenario

import (
	"encoding/json"
	"fmt"
	"io"
)

// WriteText 以文本形式输出报告，每条问题一行
func (r Report) WriteText(w io.Writer) error {
	verdict := "valid"
	if !r.Valid {
		verdict = "invalid"
	}
	if _, err := fmt.Fprintf(w, "scenario %s: %d error(s), %d warning(s)\n", verdict, len(r.Errors), len(r.Warnings)); err != nil {
		return err
	}
	for _, group := range []struct {
		label  string
		issues []Issue
	}{{"error", r.Errors}, {"warning", r.Warnings}} {
		for _, is := range group.issues {
			if err := writeIssue(w, group.label, is); err != nil {
				return err
			}
		}
	}
	return nil
}

func writeIssue(w io.Writer, label string, is Issue) error {
	path := is.Path
	if path == "" {
		path = "(document)"
	}
	line := fmt.Sprintf("%-7s %s: %s", label, path, is.Message)
	if is.Value != nil {
		line += fmt.Sprintf(" (value: %v)", is.Value)
	}
	_, err := fmt.Fprintln(w, line)
	return err
}

// WriteJSON 以缩进 JSON 输出报告
func (r Report) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(r)
}
