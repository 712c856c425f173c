package httppkg

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"
)

func TestSubstitute(t *testing.T) {
	t.Setenv("HTTPPKG_TEST_TOKEN", "secret-token")

	input := map[string]any{"query": "hello", "count": 10}
	tests := []struct {
		in   string
		want string
	}{
		{"{{env.HTTPPKG_TEST_TOKEN}}", "secret-token"},
		{"Bearer {{env.HTTPPKG_TEST_TOKEN}}", "Bearer secret-token"},
		{"{{env.HTTPPKG_UNSET}}", ""},
		{"q={{input.query}}&n={{input.count}}", "q=hello&n=10"},
		{"{{input.missing}}", "{{input.missing}}"},
		{"plain", "plain"},
	}
	for _, tt := range tests {
		if got := Substitute(tt.in, input); got != tt.want {
			t.Errorf("Substitute(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSubstituteURLEscapesInput(t *testing.T) {
	got := SubstituteURL("https://example.com/search?q={{input.query}}", map[string]any{
		"query": "fair use & parody",
	})
	if !strings.Contains(got, "q=fair+use+%26+parody") {
		t.Errorf("got %q", got)
	}
}

func TestExecuteJSONResponse(t *testing.T) {
	t.Setenv("HTTPPKG_TEST_KEY", "k123")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("q") != "llamas" {
			t.Errorf("q = %q", r.URL.Query().Get("q"))
		}
		if r.Header.Get("X-Token") != "k123" {
			t.Errorf("token = %q", r.Header.Get("X-Token"))
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[{"title":"Llamas"}]}`))
	}))
	defer server.Close()

	c := NewClient(Package{
		ID:          "search",
		Method:      "GET",
		URL:         server.URL + "/search?q={{input.query}}",
		Headers:     map[string]string{"X-Token": "{{env.HTTPPKG_TEST_KEY}}"},
		RequiredEnv: []string{"HTTPPKG_TEST_KEY"},
	})

	out, err := c.Execute(context.Background(), map[string]any{"query": "llamas"})
	if err != nil {
		t.Fatal(err)
	}
	m, ok := out.(map[string]any)
	if !ok {
		t.Fatalf("output type %T, want parsed JSON map", out)
	}
	if _, ok := m["results"]; !ok {
		t.Errorf("output = %v", m)
	}
}

func TestExecutePostBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("content-type = %q", r.Header.Get("Content-Type"))
		}
		body, _ := io.ReadAll(r.Body)
		if !strings.Contains(string(body), `"note":"remember"`) {
			t.Errorf("body = %s", body)
		}
		_, _ = w.Write([]byte("stored"))
	}))
	defer server.Close()

	c := NewClient(Package{
		ID:     "notes",
		Method: "POST",
		URL:    server.URL + "/notes",
		Body:   `{"note":"{{input.note}}"}`,
	})

	out, err := c.Execute(context.Background(), map[string]any{"note": "remember"})
	if err != nil {
		t.Fatal(err)
	}
	if out != "stored" {
		t.Errorf("output = %v", out)
	}
}

func TestExecuteMissingRequiredEnv(t *testing.T) {
	_ = os.Unsetenv("HTTPPKG_DEFINITELY_UNSET")

	c := NewClient(Package{
		ID:          "x",
		URL:         "https://example.com",
		RequiredEnv: []string{"HTTPPKG_DEFINITELY_UNSET"},
	})
	if _, err := c.Execute(context.Background(), nil); err == nil {
		t.Fatal("expected error for missing env")
	}
}

func TestExecuteNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte("slow down"))
	}))
	defer server.Close()

	c := NewClient(Package{ID: "x", URL: server.URL})
	_, err := c.Execute(context.Background(), nil)
	if err == nil || !strings.Contains(err.Error(), "HTTP 429") {
		t.Fatalf("err = %v", err)
	}
}

func TestEntryDescriptor(t *testing.T) {
	entry, err := Entry(Package{
		ID:           "brave_search",
		Description:  "web search",
		URL:          "https://example.com",
		InputExample: map[string]any{"query": "x"},
		Timeout:      "10s",
	})
	if err != nil {
		t.Fatal(err)
	}
	if entry.Descriptor.ID != "brave_search" {
		t.Errorf("id = %q", entry.Descriptor.ID)
	}
	if entry.Descriptor.Timeout != 10*time.Second {
		t.Errorf("timeout = %v", entry.Descriptor.Timeout)
	}
	if entry.Plugin == nil {
		t.Error("plugin not set")
	}

	if _, err := Entry(Package{ID: "bad", URL: "https://example.com", Timeout: "soon"}); err == nil {
		t.Error("expected error for bad timeout")
	}
}

func TestBuiltinPackagesAreLoadable(t *testing.T) {
	for _, pkg := range Builtin() {
		entry, err := Entry(pkg)
		if err != nil {
			t.Fatalf("builtin %q: %v", pkg.ID, err)
		}
		if entry.Descriptor.Description == "" || entry.Descriptor.InputExample == nil {
			t.Errorf("builtin %q missing description or example", pkg.ID)
		}
	}
}
