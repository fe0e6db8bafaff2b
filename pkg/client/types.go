package client

import (
	"fmt"
	"net/http"
	"time"
)

// MessageResponse is returned by start, stop and restart.
type MessageResponse struct {
	Message string `json:"message"`
	Error   string `json:"error,omitempty"`
}

// Status mirrors GET /status.
type Status struct {
	Online bool   `json:"online"`
	Uptime string `json:"uptime"`
}

// ProcessInfo mirrors GET /debug/process.
type ProcessInfo struct {
	Online    bool       `json:"online"`
	Uptime    string     `json:"uptime"`
	PID       int        `json:"pid,omitempty"`
	RunID     string     `json:"run_id,omitempty"`
	StartedAt *time.Time `json:"started_at,omitempty"`
}

// APIError is a non-200 response from the controller.
type APIError struct {
	StatusCode int
	Message    string
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("HTTP %d: %s: %s", e.StatusCode, e.Message, e.Detail)
	}
	if e.Message != "" {
		return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("HTTP %d", e.StatusCode)
}

// Conflict reports a request that did not apply to the bot's current state,
// e.g. starting a running bot.
func (e *APIError) Conflict() bool { return e.StatusCode == http.StatusBadRequest }
