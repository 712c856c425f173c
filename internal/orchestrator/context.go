package orchestrator

import (
	"encoding/json"

	"github.com/libreassistant/libreassistant/internal/plugin"
	"github.com/libreassistant/libreassistant/internal/protocol"
	"github.com/libreassistant/libreassistant/internal/provider"
)

// DefaultContextBudget bounds the total characters sent to the model
// per turn. Roughly 12k tokens on common tokenizers, small enough for
// local models.
const DefaultContextBudget = 48000

// assembler owns the conversation for one in-flight request. The
// system instructions and the original user request survive
// truncation; old plugin rounds are dropped oldest-first when the
// budget is exceeded, keeping the most recent round intact.
type assembler struct {
	system      provider.Message
	userRequest provider.Message
	rounds      []provider.Message
	budget      int
}

func newAssembler(instructions, userMessage string, budget int) *assembler {
	if budget <= 0 {
		budget = DefaultContextBudget
	}
	return &assembler{
		system:      provider.Message{Role: provider.RoleSystem, Content: instructions},
		userRequest: provider.Message{Role: provider.RoleUser, Content: userMessage},
		budget:      budget,
	}
}

// appendPluginRound records the model's action turn and the result
// feedback turn. The result is re-encoded in the same structured
// shape the model was taught, so feedback and instructions agree.
func (a *assembler) appendPluginRound(action protocol.Action, result plugin.Result) {
	a.rounds = append(a.rounds,
		provider.Message{Role: provider.RoleAssistant, Content: protocol.EncodeAction(action)},
		provider.Message{Role: provider.RoleUser, Content: protocol.PluginFeedback(action.PluginID, encodeResult(result))},
	)
}

// appendParseRetry echoes the rejected output back with an
// instruction to emit valid structured output.
func (a *assembler) appendParseRetry(raw, reason string) {
	a.rounds = append(a.rounds,
		provider.Message{Role: provider.RoleAssistant, Content: raw},
		provider.Message{Role: provider.RoleUser, Content: protocol.ParseRetryFeedback(reason)},
	)
}

// messages builds the turn sequence for the next model call,
// truncated to the budget. The most recent round is two turns, so at
// least the last two round messages are always kept.
func (a *assembler) messages() []provider.Message {
	start := 0
	for start < len(a.rounds)-2 && a.size(start) > a.budget {
		start += 2 // drop one whole round, action turn plus feedback turn
	}

	msgs := make([]provider.Message, 0, 2+len(a.rounds)-start)
	msgs = append(msgs, a.system, a.userRequest)
	msgs = append(msgs, a.rounds[start:]...)
	return msgs
}

func (a *assembler) size(start int) int {
	total := len(a.system.Content) + len(a.userRequest.Content)
	for _, m := range a.rounds[start:] {
		total += len(m.Content)
	}
	return total
}

func encodeResult(result plugin.Result) string {
	payload := map[string]any{"success": result.Success}
	if result.Error != "" {
		payload["error"] = result.Error
	} else {
		payload["output"] = result.Output
	}
	data, err := json.Marshal(payload)
	if err != nil {
		// Output came from a plugin and may not marshal (channels,
		// cycles). Degrade to an error result rather than panic.
		data, _ = json.Marshal(map[string]any{
			"success": false,
			"error":   "plugin output not serializable: " + err.Error(),
		})
	}
	return string(data)
}
