package genapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Job statuses reported in callbacks.
const (
	StatusProcessing = "processing"
	StatusSuccess    = "success"
)

// Callback is the body the provider posts to the callback URL.
type Callback struct {
	RequestID RequestID `json:"request_id"`
	Status    string    `json:"status"`
	Result    Result    `json:"result"`
}

// RequestID accepts the id as a JSON string or number.
type RequestID string

// UnmarshalJSON implements json.Unmarshaler.
func (r *RequestID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*r = ""
		return nil
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = RequestID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("genapi: request_id: %w", err)
	}
	*r = RequestID(n.String())
	return nil
}

// Result holds the output URLs. A single string is accepted as one URL.
type Result []string

// UnmarshalJSON implements json.Unmarshaler.
func (r *Result) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*r = nil
		return nil
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = Result{s}
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return fmt.Errorf("genapi: result: %w", err)
	}
	*r = list
	return nil
}

// First returns the first non-empty URL.
func (r Result) First() string {
	for _, u := range r {
		if u = strings.TrimSpace(u); u != "" {
			return u
		}
	}
	return ""
}
