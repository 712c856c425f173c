package protocol

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Action discriminant values on the wire.
const (
	actionPluginInvoke = "plugin_invoke"
	actionMessage      = "message"
)

// envelope is the JSON shape the model is instructed to emit:
// an "action" discriminant plus a "content" payload.
type envelope struct {
	Action  string          `json:"action"`
	Content json.RawMessage `json:"content"`
}

type pluginContent struct {
	Plugin string          `json:"plugin"`
	Input  json.RawMessage `json:"input"`
	Reason string          `json:"reason"`
}

type messageContent struct {
	Text     string `json:"text"`
	Markdown bool   `json:"markdown"`
}

// Parse extracts one Action from raw model output. It is a pure
// function: the same input always yields the same Action. Models wrap
// JSON in code fences or surround it with prose often enough that the
// parser strips fences first, then falls back to the outermost
// {...} slice before giving up.
func Parse(raw string) Action {
	body, ok := extractJSON(raw)
	if !ok {
		return ParseError(raw, "no JSON object found in model output")
	}

	var env envelope
	if err := json.Unmarshal([]byte(body), &env); err != nil {
		return ParseError(raw, fmt.Sprintf("invalid JSON: %v", err))
	}

	switch env.Action {
	case actionPluginInvoke:
		return parsePluginInvoke(raw, env.Content)
	case actionMessage:
		return parseMessage(raw, env.Content)
	case "":
		return ParseError(raw, `missing "action" field`)
	default:
		return ParseError(raw, fmt.Sprintf("unknown action %q", env.Action))
	}
}

func parsePluginInvoke(raw string, content json.RawMessage) Action {
	var c pluginContent
	if err := json.Unmarshal(content, &c); err != nil {
		return ParseError(raw, fmt.Sprintf("invalid plugin_invoke content: %v", err))
	}
	if c.Plugin == "" {
		return ParseError(raw, "plugin_invoke missing plugin id")
	}
	if len(c.Input) == 0 || string(c.Input) == "null" {
		return ParseError(raw, "plugin_invoke missing input")
	}

	// Input should be a mapping; tolerate a bare scalar or array by
	// wrapping it, since schema violations surface at execution time,
	// not parse time.
	var input map[string]any
	if err := json.Unmarshal(c.Input, &input); err != nil {
		var v any
		if err := json.Unmarshal(c.Input, &v); err != nil {
			return ParseError(raw, fmt.Sprintf("invalid plugin input: %v", err))
		}
		input = map[string]any{"value": v}
	}

	return PluginInvoke(c.Plugin, input, c.Reason)
}

func parseMessage(raw string, content json.RawMessage) Action {
	var c messageContent
	if err := json.Unmarshal(content, &c); err != nil {
		return ParseError(raw, fmt.Sprintf("invalid message content: %v", err))
	}
	if c.Text == "" {
		return ParseError(raw, "message missing text")
	}
	return Message(c.Text, c.Markdown)
}

// extractJSON locates the JSON object in raw model output: strip code
// fences, then try the whole string, then the outermost brace pair.
func extractJSON(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	s = stripFences(s)

	if strings.HasPrefix(s, "{") && json.Valid([]byte(s)) {
		return s, true
	}

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end <= start {
		return "", false
	}
	candidate := s[start : end+1]
	if !json.Valid([]byte(candidate)) {
		return "", false
	}
	return candidate, true
}

func stripFences(s string) string {
	if strings.HasPrefix(s, "```json") {
		s = s[len("```json"):]
	} else if strings.HasPrefix(s, "```") {
		s = s[len("```"):]
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

// EncodeAction renders an action back into its canonical wire JSON.
// The assembler uses this so the model sees its own prior turns in the
// exact shape it was taught, regardless of how loosely it emitted them.
func EncodeAction(a Action) string {
	switch a.Kind {
	case KindPluginInvoke:
		b, _ := json.Marshal(map[string]any{
			"action": actionPluginInvoke,
			"content": map[string]any{
				"plugin": a.PluginID,
				"input":  a.Input,
				"reason": a.Reason,
			},
		})
		return string(b)
	case KindMessage:
		b, _ := json.Marshal(map[string]any{
			"action": actionMessage,
			"content": map[string]any{
				"text":     a.Text,
				"markdown": a.Markdown,
			},
		})
		return string(b)
	default:
		return a.Raw
	}
}
