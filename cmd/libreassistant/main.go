package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/libreassistant/libreassistant/internal/api"
	"github.com/libreassistant/libreassistant/internal/auth"
	"github.com/libreassistant/libreassistant/internal/cache"
	"github.com/libreassistant/libreassistant/internal/config"
	"github.com/libreassistant/libreassistant/internal/failover"
	"github.com/libreassistant/libreassistant/internal/metrics"
	"github.com/libreassistant/libreassistant/internal/orchestrator"
	"github.com/libreassistant/libreassistant/internal/plugin"
	"github.com/libreassistant/libreassistant/internal/plugin/fileio"
	"github.com/libreassistant/libreassistant/internal/plugin/httppkg"
	"github.com/libreassistant/libreassistant/internal/plugin/luascript"
	"github.com/libreassistant/libreassistant/internal/plugin/remote"
	"github.com/libreassistant/libreassistant/internal/provider"
	"github.com/libreassistant/libreassistant/internal/registry"
	"github.com/libreassistant/libreassistant/internal/scheduler"
	"github.com/libreassistant/libreassistant/internal/state"
	"github.com/libreassistant/libreassistant/internal/state/store"
	"github.com/libreassistant/libreassistant/internal/version"
)

func main() {
	configPath := flag.String("config", "libreassistant.yaml", "path to config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Get())
		os.Exit(0)
	}

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Printf("%s", version.Get())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Model providers and credential rotation.
	providers := provider.NewRegistry()
	for id, pc := range cfg.Models.Providers {
		models := make([]provider.ModelInfo, 0, len(pc.Models))
		for _, m := range pc.Models {
			models = append(models, provider.ModelInfo{
				ID:            m.ID,
				Name:          m.Name,
				ProviderID:    id,
				ContextWindow: m.ContextWindow,
				MaxTokens:     m.MaxTokens,
			})
		}
		p, err := provider.FromEndpoint(provider.Endpoint{
			ID:      id,
			BaseURL: pc.BaseURL,
			APIKey:  pc.APIKey,
			API:     pc.API,
			Models:  models,
		})
		if err != nil {
			return fmt.Errorf("provider %s: %w", id, err)
		}
		if err := providers.Register(p); err != nil {
			return fmt.Errorf("provider %s: %w", id, err)
		}
	}

	authStore := auth.NewStore("")
	authStore.AddFromSpecs(cfg.Auth.Profiles)
	cooldownCfg, err := cfg.Auth.Cooldowns.Tracker()
	if err != nil {
		return fmt.Errorf("auth cooldowns: %w", err)
	}
	fallbacks := make([]provider.ModelRef, 0, len(cfg.Models.Fallbacks))
	for _, f := range cfg.Models.Fallbacks {
		ref, err := provider.ParseModelRef(f)
		if err != nil {
			return fmt.Errorf("fallback model: %w", err)
		}
		fallbacks = append(fallbacks, ref)
	}
	primary, err := provider.ParseModelRef(cfg.Models.Primary)
	if err != nil {
		return fmt.Errorf("primary model: %w", err)
	}
	chain := failover.NewController(
		providers,
		auth.NewRotator(authStore),
		auth.NewCooldownTracker(cooldownCfg),
		fallbacks,
	)

	// Plugin table.
	var wrap func(string, plugin.Plugin) plugin.Plugin
	if cfg.Cache.Enabled {
		ttl, err := cfg.Cache.TTLDuration()
		if err != nil {
			return fmt.Errorf("cache ttl: %w", err)
		}
		if ttl <= 0 {
			ttl = 15 * time.Minute
		}
		resultCache, err := cache.New(ctx, cfg.Cache.Addr, ttl)
		if err != nil {
			return err
		}
		defer func() { _ = resultCache.Close() }()
		wrap = resultCache.Wrap
	}

	manager := remote.NewManager()
	defer manager.StopAll()
	entries, err := buildPlugins(ctx, cfg, manager)
	if err != nil {
		return err
	}
	if wrap != nil {
		for i, e := range entries {
			entries[i].Plugin = wrap(e.Descriptor.ID, e.Plugin)
		}
	}
	plugins, err := registry.New(entries)
	if err != nil {
		return err
	}
	log.Printf("loaded %d plugins", plugins.Len())

	// State store.
	db, err := store.Open(cfg.Store.Driver, cfg.Store.DSN)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	sessions := store.NewSessionStore(db, 200, 90)
	requests := store.NewRequestStore(db)
	if err := sessions.PruneIdle(ctx); err != nil {
		log.Printf("session prune: %v", err)
	}

	// Orchestration loop.
	promRegistry := prometheus.NewRegistry()
	promRegistry.MustRegister(collectors.NewGoCollector())
	observer := metrics.New(promRegistry)
	tracker := orchestrator.NewUsageTracker(100)

	pluginTimeout, err := cfg.Orchestrator.PluginTimeoutDuration()
	if err != nil {
		return fmt.Errorf("plugin timeout: %w", err)
	}
	controller := orchestrator.NewController(
		&modelService{chain: chain, primary: primary},
		plugins,
		plugin.NewRunner(pluginTimeout),
		orchestrator.Config{
			MaxIterations:   cfg.Orchestrator.MaxIterations,
			ParseRetryLimit: cfg.Orchestrator.ParseRetryLimit,
			ContextBudget:   cfg.Orchestrator.ContextBudget,
		},
		orchestrator.WithUsageTracker(tracker),
		orchestrator.WithObserver(observer),
	)

	// Scheduled jobs.
	sched := scheduler.New(controller)
	for _, job := range cfg.Scheduler.Jobs {
		err := sched.Add(scheduler.Job{
			Name:     job.Name,
			Schedule: job.Schedule,
			Plugin:   job.Plugin,
			Input:    job.Input,
		})
		if err != nil {
			return err
		}
	}
	sched.Start()
	defer sched.Stop()

	// HTTP surface.
	server := &api.Server{
		Runner:    controller,
		Plugins:   plugins,
		Models:    providers,
		Tracker:   tracker,
		Scheduler: sched,
		Archive:   &sqlArchive{sessions: sessions, requests: requests},
		Gatherer:  promRegistry,
	}
	httpServer := &http.Server{
		Addr:              cfg.Server.Listen,
		Handler:           server.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("listening on %s", cfg.Server.Listen)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		log.Printf("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// buildPlugins collects registry entries from every configured source:
// built-in HTTP packages, package files, Lua scripts, the filesystem
// sandbox and external plugin processes.
func buildPlugins(ctx context.Context, cfg *config.Config, manager *remote.Manager) ([]registry.Entry, error) {
	var entries []registry.Entry

	for _, pkg := range httppkg.Builtin() {
		e, err := httppkg.Entry(pkg)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	fromFiles, err := httppkg.Entries(cfg.Plugins.HTTP)
	if err != nil {
		return nil, err
	}
	entries = append(entries, fromFiles...)

	for _, lp := range cfg.Plugins.Lua {
		e, err := luascript.Entry(lp.ID, lp.Description, lp.Script)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	if cfg.Plugins.FileIO.Enabled {
		fs, err := fileio.New(cfg.Plugins.FileIO.Root)
		if err != nil {
			return nil, err
		}
		entries = append(entries, fileio.Entry(fs))
	}

	var external []remote.Entry
	for _, ep := range cfg.Plugins.External {
		timeout, err := ep.TimeoutDuration()
		if err != nil {
			return nil, fmt.Errorf("plugin %s: %w", ep.Name, err)
		}
		external = append(external, remote.Entry{
			Name:    ep.Name,
			Path:    ep.Path,
			Enabled: ep.Enabled,
			Timeout: timeout,
		})
	}
	entries = append(entries, manager.LoadAll(ctx, external)...)

	return entries, nil
}

// modelService adapts the failover chain to the orchestrator: each
// turn goes to the primary model, and the request id keeps credential
// pinning stable across the iterations of one request.
type modelService struct {
	chain   *failover.Controller
	primary provider.ModelRef
}

func (m *modelService) SendTurn(ctx context.Context, requestID string, messages []provider.Message) (string, error) {
	resp, err := m.chain.Complete(ctx, m.primary, requestID, &provider.CompletionRequest{
		Messages: messages,
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// sqlArchive adapts the SQL stores to the API's archive interface.
type sqlArchive struct {
	sessions *store.SessionStore
	requests *store.RequestStore
}

func (a *sqlArchive) SaveRequest(ctx context.Context, rec *state.RequestRecord) error {
	return a.requests.Save(ctx, rec)
}

func (a *sqlArchive) AppendTurns(ctx context.Context, sessionID string, msgs ...provider.Message) error {
	return a.sessions.Append(ctx, sessionID, msgs...)
}
