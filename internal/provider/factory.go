package provider

import "fmt"

const (
	APIOpenAI    = "openai-completions"
	APIAnthropic = "anthropic-messages"
)

// Endpoint mirrors config.ProviderConfig to avoid a config import cycle.
type Endpoint struct {
	ID      string
	BaseURL string
	APIKey  string
	API     string
	Models  []ModelInfo
}

// FromEndpoint builds the Provider for one configured endpoint. The
// api field picks the wire dialect:
//   - "openai-completions"  -> OpenAI-compatible (default)
//   - "anthropic-messages"  -> Anthropic Messages API
func FromEndpoint(ep Endpoint) (Provider, error) {
	switch ep.API {
	case APIOpenAI, "":
		return NewOpenAIProvider(ep.ID, ep.BaseURL, ep.APIKey, ep.Models), nil
	case APIAnthropic:
		return NewAnthropicProvider(ep.ID, ep.BaseURL, ep.APIKey, ep.Models), nil
	default:
		return nil, fmt.Errorf("unknown api type %q for provider %q (supported: %s, %s)",
			ep.API, ep.ID, APIOpenAI, APIAnthropic)
	}
}
