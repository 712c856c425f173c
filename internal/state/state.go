// Package state defines the persisted domain records: conversation
// sessions and the archive of finished requests.
package state

import (
	"time"

	"github.com/libreassistant/libreassistant/internal/provider"
)

// Session is one conversation. Messages hold the raw user and
// assistant turns in order, without the system prompt.
type Session struct {
	ID        string             `json:"id"`
	Messages  []provider.Message `json:"messages"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
}

// RequestRecord is the archived outcome of one orchestrated request.
type RequestRecord struct {
	RequestID      string    `json:"request_id"`
	SessionID      string    `json:"session_id,omitempty"`
	Success        bool      `json:"success"`
	Response       string    `json:"response"`
	TerminalReason string    `json:"terminal_reason"`
	PluginCount    int       `json:"plugin_count"`
	PluginsUsed    []string  `json:"plugins_used"`
	IterationCount int       `json:"iteration_count"`
	CreatedAt      time.Time `json:"created_at"`
}
