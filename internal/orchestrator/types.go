package orchestrator

import (
	"github.com/libreassistant/libreassistant/internal/plugin"
	"github.com/libreassistant/libreassistant/internal/protocol"
)

// TerminalReason says why a request's loop stopped.
type TerminalReason string

const (
	ReasonMessage       TerminalReason = "MESSAGE"
	ReasonMaxIterations TerminalReason = "MAX_ITERATIONS"
	ReasonFatalError    TerminalReason = "FATAL_ERROR"
)

// IterationRecord is one loop pass: the action the model emitted and,
// for plugin rounds, the result that was fed back. Append-only for
// the lifetime of a single request.
type IterationRecord struct {
	Index  int
	Action protocol.Action
	Result *plugin.Result
}

// PluginUse is one successful plugin round as reported to the caller.
type PluginUse struct {
	ID     string         `json:"id"`
	Reason string         `json:"reason"`
	Input  map[string]any `json:"input"`
}

// Outcome is the single coherent result of one orchestrated request.
// IterationCount counts plugin rounds, including synthesized
// unknown-plugin failures, and never exceeds the configured bound.
type Outcome struct {
	Success        bool
	ResponseText   string
	Markdown       bool
	PluginsUsed    []PluginUse
	IterationCount int
	RequestID      string
	TerminalReason TerminalReason
	Records        []IterationRecord
}
