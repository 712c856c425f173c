// Package httppkg turns declarative YAML request packages into
// plugins: one templated HTTP request per plugin, with {{env.X}} and
// {{input.Y}} substitution in URL, headers, and body.
package httppkg

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"regexp"
	"strings"
	"time"

	"github.com/libreassistant/libreassistant/internal/registry"
)

// Package defines one HTTP-backed plugin.
type Package struct {
	ID           string            `yaml:"id"`
	Description  string            `yaml:"description"`
	Method       string            `yaml:"method"`
	URL          string            `yaml:"url"`
	Body         string            `yaml:"body"`
	Headers      map[string]string `yaml:"headers"`
	RequiredEnv  []string          `yaml:"required_env"`
	InputExample map[string]any    `yaml:"input_example"`
	Timeout      string            `yaml:"timeout"`
}

var (
	envRe   = regexp.MustCompile(`\{\{env\.(\w+)\}\}`)
	inputRe = regexp.MustCompile(`\{\{input\.(\w+)\}\}`)
)

// Substitute replaces {{env.X}} and {{input.Y}} in s. Missing env
// vars become empty; missing inputs are left as literals so the error
// surfaces in the downstream response rather than as a silent blank.
func Substitute(s string, input map[string]any) string {
	s = envRe.ReplaceAllStringFunc(s, func(match string) string {
		name := envRe.FindStringSubmatch(match)[1]
		return os.Getenv(name)
	})
	s = inputRe.ReplaceAllStringFunc(s, func(match string) string {
		name := inputRe.FindStringSubmatch(match)[1]
		if v, ok := input[name]; ok {
			return stringify(v)
		}
		return match
	})
	return s
}

// SubstituteURL is Substitute with input values query-escaped, for
// templates expanded into a URL.
func SubstituteURL(s string, input map[string]any) string {
	escaped := make(map[string]any, len(input))
	for k, v := range input {
		escaped[k] = url.QueryEscape(stringify(v))
	}
	return Substitute(s, escaped)
}

func stringify(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", t)
	}
}

// Client executes one Package. It implements the plugin execution
// contract.
type Client struct {
	pkg    Package
	client *http.Client
}

func NewClient(pkg Package) *Client {
	return &Client{
		pkg:    pkg,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) Execute(ctx context.Context, input map[string]any) (any, error) {
	for _, name := range c.pkg.RequiredEnv {
		if os.Getenv(name) == "" {
			return nil, fmt.Errorf("required env %q is not set", name)
		}
	}

	target := SubstituteURL(c.pkg.URL, input)
	if target == "" {
		return nil, fmt.Errorf("url is empty after substitution")
	}

	method := strings.ToUpper(c.pkg.Method)
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if c.pkg.Body != "" {
		body = strings.NewReader(Substitute(c.pkg.Body, input))
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, v := range c.pkg.Headers {
		req.Header.Set(k, Substitute(v, input))
	}
	if c.pkg.Body != "" && req.Header.Get("Content-Type") == "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, bytes.TrimSpace(respBody))
	}

	// JSON answers go back structured so the model can pick fields out.
	if strings.Contains(resp.Header.Get("Content-Type"), "application/json") && len(respBody) > 0 {
		var parsed any
		if json.Unmarshal(respBody, &parsed) == nil {
			return parsed, nil
		}
	}
	return string(respBody), nil
}

// Entry converts a Package into a registry entry.
func Entry(pkg Package) (registry.Entry, error) {
	timeout := time.Duration(0)
	if pkg.Timeout != "" {
		d, err := time.ParseDuration(pkg.Timeout)
		if err != nil {
			return registry.Entry{}, fmt.Errorf("package %q: invalid timeout: %w", pkg.ID, err)
		}
		timeout = d
	}
	return registry.Entry{
		Descriptor: registry.Descriptor{
			ID:           pkg.ID,
			Name:         pkg.ID,
			Description:  pkg.Description,
			InputExample: pkg.InputExample,
			Timeout:      timeout,
		},
		Plugin: NewClient(pkg),
	}, nil
}
