package httppkg

// Builtin returns the packages compiled into the binary: Brave web
// search and CourtListener legal research. Both can be overridden or
// extended by configured package files.
func Builtin() []Package {
	return []Package{
		{
			ID:          "brave_search",
			Description: "Search the web using the Brave Search API. Returns relevant web results for a given query.",
			Method:      "GET",
			URL:         "https://api.search.brave.com/res/v1/web/search?q={{input.query}}&count=10",
			Headers: map[string]string{
				"Accept":               "application/json",
				"X-Subscription-Token": "{{env.BRAVE_API_KEY}}",
			},
			RequiredEnv:  []string{"BRAVE_API_KEY"},
			InputExample: map[string]any{"query": "latest supreme court rulings"},
			Timeout:      "10s",
		},
		{
			ID:          "courtlistener",
			Description: "Legal research over US court opinions, dockets, and case search via the CourtListener API.",
			Method:      "GET",
			URL:         "https://www.courtlistener.com/api/rest/v3/search/?q={{input.query}}",
			Headers: map[string]string{
				"Authorization": "Token {{env.COURTLISTENER_API_KEY}}",
			},
			RequiredEnv:  []string{"COURTLISTENER_API_KEY"},
			InputExample: map[string]any{"query": "fair use doctrine"},
			Timeout:      "15s",
		},
	}
}
