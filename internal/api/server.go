// Package api serves the HTTP surface: the prompt endpoint, plugin
// and model listings, recent activity and health.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/libreassistant/libreassistant/internal/orchestrator"
	"github.com/libreassistant/libreassistant/internal/provider"
	"github.com/libreassistant/libreassistant/internal/registry"
	"github.com/libreassistant/libreassistant/internal/reqid"
	"github.com/libreassistant/libreassistant/internal/scheduler"
	"github.com/libreassistant/libreassistant/internal/state"
	"github.com/libreassistant/libreassistant/internal/version"
)

// PromptRunner runs one user request through the model loop.
type PromptRunner interface {
	Run(ctx context.Context, requestID, userMessage string) (*orchestrator.Outcome, error)
}

// Archive persists finished requests and conversation turns. Both
// methods are best-effort from the handler's point of view.
type Archive interface {
	SaveRequest(ctx context.Context, rec *state.RequestRecord) error
	AppendTurns(ctx context.Context, sessionID string, msgs ...provider.Message) error
}

// Server holds the handler dependencies. Optional fields may be nil;
// the corresponding endpoints then report empty data.
type Server struct {
	Runner    PromptRunner
	Plugins   *registry.Registry
	Models    *provider.Registry
	Tracker   *orchestrator.UsageTracker
	Scheduler *scheduler.Scheduler
	Archive   Archive
	Gatherer  prometheus.Gatherer
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/llm/prompt", s.handlePrompt)
	mux.HandleFunc("GET /api/plugins", s.handlePlugins)
	mux.HandleFunc("GET /api/plugins/recent", s.handleRecentPlugins)
	mux.HandleFunc("GET /api/models", s.handleModels)
	mux.HandleFunc("GET /api/scheduler/jobs", s.handleSchedulerJobs)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.Gatherer != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.Gatherer, promhttp.HandlerOpts{}))
	}
	return mux
}

type promptRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handlePrompt(w http.ResponseWriter, r *http.Request) {
	var req promptRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid JSON body"})
		return
	}
	if req.Message == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "message is required"})
		return
	}

	requestID := uuid.NewString()
	ctx := reqid.With(r.Context(), requestID)
	outcome, err := s.Runner.Run(ctx, requestID, req.Message)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			// Client went away; nothing sensible to write.
			return
		}
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}

	s.archive(req, outcome)
	writeJSON(w, http.StatusOK, outcome.Payload())
}

// archive stores the outcome and the conversation turns. Failures are
// logged, never surfaced: the user already has their answer.
func (s *Server) archive(req promptRequest, outcome *orchestrator.Outcome) {
	if s.Archive == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	payload := outcome.Payload()
	plugins := make([]string, 0, len(payload.PluginsUsed))
	for _, p := range payload.PluginsUsed {
		plugins = append(plugins, p.ID)
	}
	rec := &state.RequestRecord{
		RequestID:      outcome.RequestID,
		SessionID:      req.SessionID,
		Success:        outcome.Success,
		Response:       outcome.ResponseText,
		TerminalReason: string(outcome.TerminalReason),
		PluginCount:    payload.PluginCount,
		PluginsUsed:    plugins,
		IterationCount: outcome.IterationCount,
	}
	if err := s.Archive.SaveRequest(ctx, rec); err != nil {
		log.Printf("api: archive request %s: %v", outcome.RequestID, err)
	}
	if req.SessionID == "" {
		return
	}
	err := s.Archive.AppendTurns(ctx, req.SessionID,
		provider.Message{Role: provider.RoleUser, Content: req.Message},
		provider.Message{Role: provider.RoleAssistant, Content: outcome.ResponseText},
	)
	if err != nil {
		log.Printf("api: append session %s: %v", req.SessionID, err)
	}
}

func (s *Server) handlePlugins(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"plugins": s.Plugins.List()})
}

func (s *Server) handleRecentPlugins(w http.ResponseWriter, _ *http.Request) {
	events := []orchestrator.UsageEvent{}
	counts := map[string]int{}
	if s.Tracker != nil {
		events = s.Tracker.Recent(20)
		counts = s.Tracker.Counts()
	}
	writeJSON(w, http.StatusOK, map[string]any{"recent": events, "counts": counts})
}

func (s *Server) handleModels(w http.ResponseWriter, _ *http.Request) {
	models := []provider.ModelInfo{}
	if s.Models != nil {
		models = s.Models.AllModels()
	}
	writeJSON(w, http.StatusOK, map[string]any{"models": models})
}

func (s *Server) handleSchedulerJobs(w http.ResponseWriter, _ *http.Request) {
	jobs := []scheduler.JobStatus{}
	if s.Scheduler != nil {
		jobs = s.Scheduler.Status()
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": version.Get().Version,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: write response: %v", err)
	}
}
