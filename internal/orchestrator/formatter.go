package orchestrator

import (
	"fmt"
	"strings"

	"github.com/libreassistant/libreassistant/internal/protocol"
)

// ResponsePayload is the caller-facing shape of an Outcome, stable
// across API versions.
type ResponsePayload struct {
	Success     bool        `json:"success"`
	Response    string      `json:"response"`
	Markdown    bool        `json:"markdown"`
	PluginCount int         `json:"plugin_count"`
	PluginsUsed []PluginUse `json:"plugins_used"`
	RequestID   string      `json:"request_id"`
}

func (o *Outcome) Payload() ResponsePayload {
	used := o.PluginsUsed
	if used == nil {
		used = []PluginUse{}
	}
	return ResponsePayload{
		Success:     o.Success,
		Response:    o.ResponseText,
		Markdown:    o.Markdown,
		PluginCount: len(used),
		PluginsUsed: used,
		RequestID:   o.RequestID,
	}
}

// pluginsUsed lists the successful plugin rounds in execution order.
func pluginsUsed(records []IterationRecord) []PluginUse {
	var used []PluginUse
	for _, rec := range records {
		if rec.Action.Kind != protocol.KindPluginInvoke || rec.Result == nil || !rec.Result.Success {
			continue
		}
		used = append(used, PluginUse{
			ID:     rec.Action.PluginID,
			Reason: rec.Action.Reason,
			Input:  rec.Action.Input,
		})
	}
	return used
}

func messageOutcome(requestID string, action protocol.Action, records []IterationRecord, pluginRounds int) *Outcome {
	return &Outcome{
		Success:        true,
		ResponseText:   action.Text,
		Markdown:       action.Markdown,
		PluginsUsed:    pluginsUsed(records),
		IterationCount: pluginRounds,
		RequestID:      requestID,
		TerminalReason: ReasonMessage,
		Records:        records,
	}
}

func maxIterationsOutcome(requestID string, records []IterationRecord, pluginRounds int) *Outcome {
	return &Outcome{
		Success:        false,
		ResponseText:   summarizeStop(records, "I reached the limit of plugin invocations for a single request."),
		Markdown:       false,
		PluginsUsed:    pluginsUsed(records),
		IterationCount: pluginRounds,
		RequestID:      requestID,
		TerminalReason: ReasonMaxIterations,
		Records:        records,
	}
}

func fatalOutcome(requestID string, records []IterationRecord, pluginRounds int, reason string) *Outcome {
	return &Outcome{
		Success:        false,
		ResponseText:   summarizeStop(records, reason),
		Markdown:       false,
		PluginsUsed:    pluginsUsed(records),
		IterationCount: pluginRounds,
		RequestID:      requestID,
		TerminalReason: ReasonFatalError,
		Records:        records,
	}
}

// summarizeStop builds the best-effort explanation for an aborted
// request. Work already done is never discarded silently: every
// executed plugin round appears in the summary.
func summarizeStop(records []IterationRecord, reason string) string {
	var sb strings.Builder
	sb.WriteString(reason)

	ran := 0
	for _, rec := range records {
		if rec.Action.Kind != protocol.KindPluginInvoke || rec.Result == nil {
			continue
		}
		if ran == 0 {
			sb.WriteString("\n\nPlugin calls made before stopping:\n")
		}
		ran++
		status := "ok"
		if !rec.Result.Success {
			status = "failed: " + rec.Result.Error
		}
		sb.WriteString(fmt.Sprintf("%d. %s (%s)\n", ran, rec.Action.PluginID, status))
	}
	return sb.String()
}
