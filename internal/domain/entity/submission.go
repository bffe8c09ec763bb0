package entity

import (
	"bytes"
	"fmt"
	"sort"
	"time"

	json "github.com/goccy/go-json"
)

// Submission is a liaison's completion report for a work item
type Submission struct {
	ID          string              `json:"id,omitempty"`
	WorkItemID  string              `json:"work_item_id"`
	LiaisonID   string              `json:"liaison_id"`
	Notes       string              `json:"notes"`
	Expenses    []Expense           `json:"expenses"`
	Attachments []*RemoteAttachment `json:"attachments"`
	CreatedAt   time.Time           `json:"created_at"`
}

// RawSubmission is a submission payload of unknown shape.
// Keys keeps the object's key order so nested scans are deterministic.
type RawSubmission struct {
	Keys   []string
	Fields map[string]interface{}
}

// NewRawSubmission wraps a decoded object; keys are visited in sorted order
func NewRawSubmission(fields map[string]interface{}) *RawSubmission {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return &RawSubmission{Keys: keys, Fields: fields}
}

// DecodeRawSubmission decodes a JSON object preserving its top-level key order.
// Numbers are kept as json.Number so identifiers and amounts round-trip as text.
func DecodeRawSubmission(data []byte) (*RawSubmission, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to read submission payload: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("submission payload is not a JSON object")
	}

	raw := &RawSubmission{Fields: make(map[string]interface{})}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("failed to read submission key: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected submission key token %v", keyTok)
		}

		var value interface{}
		if err := dec.Decode(&value); err != nil {
			return nil, fmt.Errorf("failed to decode submission field %q: %w", key, err)
		}
		if _, seen := raw.Fields[key]; !seen {
			raw.Keys = append(raw.Keys, key)
		}
		raw.Fields[key] = value
	}

	return raw, nil
}

// Get returns the value stored under key
func (r *RawSubmission) Get(key string) (interface{}, bool) {
	if r == nil || r.Fields == nil {
		return nil, false
	}
	v, ok := r.Fields[key]
	return v, ok
}
