// internal/models/request.go
package models

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Round numbers.
const (
	RoundCreate = 1
	RoundRevise = 2
)

// BuildRequest is one accepted round for a task. Immutable once accepted.
type BuildRequest struct {
	Email         string       `json:"email"`
	Secret        string       `json:"secret"`
	Task          string       `json:"task"`
	Round         int          `json:"round"`
	Nonce         string       `json:"nonce"`
	Brief         string       `json:"brief"`
	EvaluationURL string       `json:"evaluation_url"`
	Checks        CheckList    `json:"checks"`
	Attachments   []Attachment `json:"attachments"`
}

// Attachment is a named inline payload carried as a data URI.
type Attachment struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

// CheckList holds evaluation checks in any JSON shape. Strings are kept as
// they are; any other value is kept as its compact JSON text.
type CheckList []string

func (c *CheckList) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*c = nil
		return nil
	}

	var items []json.RawMessage
	if err := json.Unmarshal(trimmed, &items); err != nil {
		items = []json.RawMessage{trimmed}
	}

	out := make(CheckList, 0, len(items))
	for _, item := range items {
		out = append(out, checkText(item))
	}
	*c = out
	return nil
}

func checkText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err == nil {
		return buf.String()
	}
	return string(raw)
}

// BriefSummary returns the first non-empty line of the brief.
func (r *BuildRequest) BriefSummary() string {
	for _, line := range strings.Split(r.Brief, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

// AuthorName is the local part of the requester email.
func (r *BuildRequest) AuthorName() string {
	if at := strings.Index(r.Email, "@"); at > 0 {
		return r.Email[:at]
	}
	return r.Email
}
