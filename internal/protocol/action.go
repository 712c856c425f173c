// Package protocol defines the structured turn contract between the
// orchestrator and the model: the closed Action type every model turn
// maps onto, the parser that extracts it from raw model text, and the
// system instructions that teach the model the format.
package protocol

// Kind discriminates the closed set of action variants. A model turn
// is always exactly one of these; malformed output becomes
// KindParseError rather than being dropped.
type Kind int

const (
	// KindParseError is the zero value so an uninitialized Action is
	// never mistaken for a valid one.
	KindParseError Kind = iota
	KindPluginInvoke
	KindMessage
)

func (k Kind) String() string {
	switch k {
	case KindPluginInvoke:
		return "plugin_invoke"
	case KindMessage:
		return "message"
	default:
		return "parse_error"
	}
}

// Action is one parsed model turn.
//
// KindPluginInvoke populates PluginID, Input, and Reason.
// KindMessage populates Text and Markdown.
// KindParseError populates Raw and Err.
type Action struct {
	Kind Kind

	PluginID string
	Input    map[string]any
	Reason   string

	Text     string
	Markdown bool

	Raw string
	Err string
}

// PluginInvoke constructs a plugin invocation action.
func PluginInvoke(pluginID string, input map[string]any, reason string) Action {
	return Action{Kind: KindPluginInvoke, PluginID: pluginID, Input: input, Reason: reason}
}

// Message constructs a final message action.
func Message(text string, markdown bool) Action {
	return Action{Kind: KindMessage, Text: text, Markdown: markdown}
}

// ParseError constructs a parse failure carrying the raw model text
// and a human-readable reason.
func ParseError(raw, reason string) Action {
	return Action{Kind: KindParseError, Raw: raw, Err: reason}
}
