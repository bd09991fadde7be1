package apitypes

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ApiError represents an RFC 7807 (problem+json) error response.
type ApiError struct {
	// Status is the HTTP-style status code (e.g., 400, 409, 500)
	Status int `json:"status"`
	// Title is a short, human-readable summary of the problem type
	Title string `json:"title"`
	// Detail is a human-readable explanation specific to this occurrence
	Detail string `json:"detail"`
	// Kind is the engine error kind, when the problem came from the engine
	Kind string `json:"kind,omitempty"`
}

func (e ApiError) Error() string {
	if e.Status == 0 && e.Title == "" {
		return "unknown error"
	}
	if e.Status == 0 {
		return fmt.Sprintf("%s: %s", e.Title, e.Detail)
	}
	return fmt.Sprintf("%d %s: %s", e.Status, e.Title, e.Detail)
}

// --

type PingResponse struct {
	Server   string `json:"server"`
	Version  string `json:"version"`
	Platform string `json:"platform"`
}

type InjectStartRequest struct {
	Text string `json:"text"`
}

// UnmarshalJSON accepts both {"text":"..."} and a bare JSON string.
func (r *InjectStartRequest) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		r.Text = s
		return nil
	}
	var raw struct {
		Text *string `json:"text"`
	}
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return err
	}
	if raw.Text == nil {
		return fmt.Errorf("missing field \"text\"")
	}
	r.Text = *raw.Text
	return nil
}

type InjectStartResponse struct {
	Total int `json:"total"`
}

type InjectCancelResponse struct {
	Cancelled bool `json:"cancelled"`
}

type InjectStatusResponse struct {
	State       string `json:"state"`
	Tap         string `json:"tap"`
	Cursor      int    `json:"cursor"`
	Total       int    `json:"total"`
	Successes   int    `json:"successes"`
	Failures    int    `json:"failures"`
	Credits     int    `json:"credits"`
	Drops       int    `json:"drops"`
	DelayMicros int64  `json:"delayMicros"`
	Pending     bool   `json:"pending"`
}

// InjectEvent is one line of the inject/events stream.
type InjectEvent struct {
	Type      string `json:"type"`
	Current   int    `json:"current"`
	Total     int    `json:"total"`
	Successes *int   `json:"successes,omitempty"`
	Failures  *int   `json:"failures,omitempty"`
	Kind      string `json:"kind,omitempty"`
	Error     string `json:"error,omitempty"`
	Time      string `json:"time"`
}
