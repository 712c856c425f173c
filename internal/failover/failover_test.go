package failover

import (
	"context"
	"fmt"
	"testing"

	"github.com/libreassistant/libreassistant/internal/auth"
	"github.com/libreassistant/libreassistant/internal/provider"
)

type mockState struct {
	calls int
	creds []string
	errs  []error // consumed one per call; nil entry means success
}

type mockProvider struct {
	id    string
	cred  string
	state *mockState
}

func newMockProvider(id string, errs ...error) *mockProvider {
	return &mockProvider{id: id, state: &mockState{errs: errs}}
}

func (m *mockProvider) ID() string { return m.id }

func (m *mockProvider) Complete(_ context.Context, _ *provider.CompletionRequest) (*provider.CompletionResponse, error) {
	s := m.state
	s.calls++
	s.creds = append(s.creds, m.cred)
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		if err != nil {
			return nil, err
		}
	}
	return &provider.CompletionResponse{Content: "ok from " + m.id}, nil
}

func (m *mockProvider) WithCredential(cred string) provider.Provider {
	clone := *m
	clone.cred = cred
	return &clone
}

func (m *mockProvider) Models() []provider.ModelInfo { return nil }

func apiErr(code int) *provider.APIError {
	return &provider.APIError{Provider: "mock", StatusCode: code, Message: "mock failure"}
}

func setupTest() (*provider.Registry, *auth.Rotator, *auth.CooldownTracker) {
	store := auth.NewStore("")
	store.Add(&auth.Profile{ID: "anthropic:key1", ProviderID: "anthropic", Type: auth.AuthTypeAPIKey, Key: "key1"})
	store.Add(&auth.Profile{ID: "anthropic:key2", ProviderID: "anthropic", Type: auth.AuthTypeAPIKey, Key: "key2"})
	store.Add(&auth.Profile{ID: "openai:key1", ProviderID: "openai", Type: auth.AuthTypeAPIKey, Key: "okey1"})

	rotator := auth.NewRotator(store)
	cooldowns := auth.NewCooldownTracker(auth.DefaultCooldownConfig())
	reg := provider.NewRegistry()

	return reg, rotator, cooldowns
}

func TestCompleteSuccess(t *testing.T) {
	reg, rotator, cooldowns := setupTest()
	p := newMockProvider("anthropic")
	_ = reg.Register(p)

	ctrl := NewController(reg, rotator, cooldowns, nil)

	resp, err := ctrl.Complete(context.Background(), "anthropic/claude-haiku-4", "sess1", &provider.CompletionRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Content != "ok from anthropic" {
		t.Errorf("unexpected content: %s", resp.Content)
	}
	if p.state.calls != 1 {
		t.Errorf("calls = %d, want 1", p.state.calls)
	}
}

func TestCompleteAppliesCredential(t *testing.T) {
	reg, rotator, cooldowns := setupTest()
	p := newMockProvider("anthropic")
	_ = reg.Register(p)

	ctrl := NewController(reg, rotator, cooldowns, nil)
	if _, err := ctrl.Complete(context.Background(), "anthropic/claude-haiku-4", "sess1", &provider.CompletionRequest{}); err != nil {
		t.Fatal(err)
	}

	if len(p.state.creds) != 1 {
		t.Fatalf("creds = %v", p.state.creds)
	}
	if got := p.state.creds[0]; got != "key1" && got != "key2" {
		t.Errorf("credential = %q, want a rotated profile key", got)
	}
}

func TestCompleteRotatesOnRateLimit(t *testing.T) {
	reg, rotator, cooldowns := setupTest()
	p := newMockProvider("anthropic", apiErr(429), nil)
	_ = reg.Register(p)

	ctrl := NewController(reg, rotator, cooldowns, nil)
	resp, err := ctrl.Complete(context.Background(), "anthropic/claude-haiku-4", "sess1", &provider.CompletionRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Content != "ok from anthropic" {
		t.Errorf("unexpected content: %s", resp.Content)
	}
	if p.state.calls != 2 {
		t.Errorf("calls = %d, want 2", p.state.calls)
	}
	if p.state.creds[0] == p.state.creds[1] {
		t.Errorf("retry reused credential %q, expected rotation", p.state.creds[0])
	}
}

func TestCompleteRotatesOnAuthError(t *testing.T) {
	reg, rotator, cooldowns := setupTest()
	p := newMockProvider("anthropic", apiErr(401), nil)
	_ = reg.Register(p)

	ctrl := NewController(reg, rotator, cooldowns, nil)
	resp, err := ctrl.Complete(context.Background(), "anthropic/claude-haiku-4", "sess1", &provider.CompletionRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Content != "ok from anthropic" {
		t.Errorf("content = %q", resp.Content)
	}
	if p.state.calls != 2 {
		t.Errorf("calls = %d, want 2", p.state.calls)
	}
}

func TestCompleteFallbackToNextModel(t *testing.T) {
	reg, rotator, cooldowns := setupTest()
	_ = reg.Register(newMockProvider("anthropic", apiErr(500), apiErr(500), apiErr(500)))
	_ = reg.Register(newMockProvider("openai"))

	fallbacks := []provider.ModelRef{"openai/gpt-5.2"}
	ctrl := NewController(reg, rotator, cooldowns, fallbacks)

	resp, err := ctrl.Complete(context.Background(), "anthropic/claude-haiku-4", "sess1", &provider.CompletionRequest{})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Content != "ok from openai" {
		t.Errorf("expected fallback to openai, got %s", resp.Content)
	}
}

func TestCompleteAllExhausted(t *testing.T) {
	reg, rotator, cooldowns := setupTest()
	_ = reg.Register(newMockProvider("anthropic", apiErr(500), apiErr(500), apiErr(500)))
	_ = reg.Register(newMockProvider("openai", apiErr(500), apiErr(500), apiErr(500)))

	fallbacks := []provider.ModelRef{"openai/gpt-5.2"}
	ctrl := NewController(reg, rotator, cooldowns, fallbacks)

	_, err := ctrl.Complete(context.Background(), "anthropic/claude-haiku-4", "sess1", &provider.CompletionRequest{})
	if err == nil {
		t.Fatal("expected error when all exhausted")
	}
	if _, ok := err.(*AllExhaustedError); !ok {
		t.Errorf("expected AllExhaustedError, got %T", err)
	}
}

func TestCompleteNonRetryableError(t *testing.T) {
	reg, rotator, cooldowns := setupTest()
	_ = reg.Register(newMockProvider("anthropic", apiErr(400)))

	ctrl := NewController(reg, rotator, cooldowns, []provider.ModelRef{"openai/gpt-5.2"})
	_, err := ctrl.Complete(context.Background(), "anthropic/claude-haiku-4", "sess1", &provider.CompletionRequest{})
	if err == nil {
		t.Fatal("expected error for non-retryable")
	}
	pe, ok := err.(*provider.APIError)
	if !ok {
		t.Fatalf("expected *provider.APIError, got %T", err)
	}
	if pe.StatusCode != 400 {
		t.Errorf("expected status 400, got %d", pe.StatusCode)
	}
}

func TestCompleteSkipsDuplicateModels(t *testing.T) {
	reg, rotator, cooldowns := setupTest()
	p := newMockProvider("anthropic",
		apiErr(429), apiErr(429), apiErr(429),
		apiErr(429), apiErr(429), apiErr(429))
	_ = reg.Register(p)

	fallbacks := []provider.ModelRef{"anthropic/claude-haiku-4"}
	ctrl := NewController(reg, rotator, cooldowns, fallbacks)

	_, err := ctrl.Complete(context.Background(), "anthropic/claude-haiku-4", "sess1", &provider.CompletionRequest{})
	if err == nil {
		t.Fatal("expected error")
	}
	if _, ok := err.(*AllExhaustedError); !ok {
		t.Errorf("expected AllExhaustedError, got %T: %v", err, err)
	}
	if p.state.calls > 3 {
		t.Errorf("duplicate model was retried: %d calls", p.state.calls)
	}
}

func TestCompleteUnregisteredProvider(t *testing.T) {
	reg, rotator, cooldowns := setupTest()

	ctrl := NewController(reg, rotator, cooldowns, nil)
	_, err := ctrl.Complete(context.Background(), "unknown/model-x", "sess1", &provider.CompletionRequest{})
	if err == nil {
		t.Fatal("expected error for unregistered provider")
	}
}

func TestIsRateLimitError(t *testing.T) {
	if !IsRateLimitError(apiErr(429)) {
		t.Error("429 should be rate limit error")
	}
	if IsRateLimitError(apiErr(500)) {
		t.Error("500 should not be rate limit error")
	}
}

func TestIsAuthError(t *testing.T) {
	if !IsAuthError(apiErr(401)) {
		t.Error("401 should be auth error")
	}
	if !IsAuthError(apiErr(403)) {
		t.Error("403 should be auth error")
	}
	if IsAuthError(apiErr(429)) {
		t.Error("429 should not be auth error")
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		code int
		want bool
	}{
		{429, true},
		{500, true},
		{503, true},
		{401, true},
		{400, false},
	}
	for _, tt := range tests {
		if got := IsRetryable(apiErr(tt.code)); got != tt.want {
			t.Errorf("IsRetryable(%d) = %v, want %v", tt.code, got, tt.want)
		}
	}
}

func TestNonAPIErrorClassification(t *testing.T) {
	plainErr := fmt.Errorf("connection refused")
	if IsRateLimitError(plainErr) {
		t.Error("plain error should not be rate limit")
	}
	if IsAuthError(plainErr) {
		t.Error("plain error should not be auth error")
	}
	if IsRetryable(plainErr) {
		t.Error("plain error should not be retryable")
	}
}

func TestAllExhaustedErrorString(t *testing.T) {
	err := &AllExhaustedError{Attempted: []string{"anthropic/haiku", "openai/gpt-5"}}
	if err.Error() == "" {
		t.Error("expected non-empty error string")
	}
}
