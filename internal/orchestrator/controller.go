// Package orchestrator drives the model tool-invocation loop: ask the
// model for a turn, parse the answer into an action, execute plugin
// requests with feedback, and stop on a final message or a safety
// bound.
package orchestrator

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/libreassistant/libreassistant/internal/plugin"
	"github.com/libreassistant/libreassistant/internal/protocol"
	"github.com/libreassistant/libreassistant/internal/provider"
	"github.com/libreassistant/libreassistant/internal/registry"
)

const (
	DefaultMaxIterations   = 5
	DefaultParseRetryLimit = 2
)

// ModelService is the turn-taking contract the loop consumes. The
// requestID lets implementations pin credentials or models for the
// duration of one orchestrated request.
type ModelService interface {
	SendTurn(ctx context.Context, requestID string, messages []provider.Message) (string, error)
}

// Observer receives loop events. Implementations must be safe for
// concurrent use; all methods are called synchronously from the loop.
type Observer interface {
	RequestFinished(outcome *Outcome)
	PluginExecuted(pluginID string, success bool, elapsed time.Duration)
	ParseFailure()
}

type Config struct {
	MaxIterations   int
	ParseRetryLimit int
	ContextBudget   int
}

func (c Config) withDefaults() Config {
	if c.MaxIterations <= 0 {
		c.MaxIterations = DefaultMaxIterations
	}
	if c.ParseRetryLimit <= 0 {
		c.ParseRetryLimit = DefaultParseRetryLimit
	}
	if c.ContextBudget <= 0 {
		c.ContextBudget = DefaultContextBudget
	}
	return c
}

// Controller runs one loop instance per request. It holds no
// per-request state itself, so one Controller serves concurrent
// requests; each call to Run owns its context and record log
// exclusively.
type Controller struct {
	model    ModelService
	registry *registry.Registry
	runner   *plugin.Runner
	tracker  *UsageTracker
	observer Observer
	cfg      Config
}

func NewController(model ModelService, reg *registry.Registry, runner *plugin.Runner, cfg Config, opts ...ControllerOption) *Controller {
	c := &Controller{
		model:    model,
		registry: reg,
		runner:   runner,
		cfg:      cfg.withDefaults(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

type ControllerOption func(*Controller)

func WithUsageTracker(t *UsageTracker) ControllerOption {
	return func(c *Controller) { c.tracker = t }
}

func WithObserver(obs Observer) ControllerOption {
	return func(c *Controller) { c.observer = obs }
}

// Run drives the loop for one user message until a terminal state.
// Every failure mode except caller cancellation is resolved into an
// Outcome; the returned error is non-nil only when ctx ended first.
func (c *Controller) Run(ctx context.Context, requestID, userMessage string) (*Outcome, error) {
	if requestID == "" {
		requestID = uuid.NewString()
	}

	asm := newAssembler(protocol.Instructions(c.registry.List()), userMessage, c.cfg.ContextBudget)
	var records []IterationRecord
	parseFailures := 0
	pluginRounds := 0

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		raw, err := c.model.SendTurn(ctx, requestID, asm.messages())
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Printf("orchestrator: request %s: model turn failed: %v", requestID, err)
			return c.finish(fatalOutcome(requestID, records, pluginRounds,
				fmt.Sprintf("The model service failed: %v", err))), nil
		}

		action := protocol.Parse(raw)
		switch action.Kind {
		case protocol.KindMessage:
			records = append(records, IterationRecord{Index: len(records), Action: action})
			return c.finish(messageOutcome(requestID, action, records, pluginRounds)), nil

		case protocol.KindParseError:
			parseFailures++
			if c.observer != nil {
				c.observer.ParseFailure()
			}
			records = append(records, IterationRecord{Index: len(records), Action: action})
			if parseFailures > c.cfg.ParseRetryLimit {
				log.Printf("orchestrator: request %s: aborting after %d parse failures", requestID, parseFailures)
				return c.finish(fatalOutcome(requestID, records, pluginRounds,
					"The model repeatedly produced unparseable output: "+action.Err)), nil
			}
			asm.appendParseRetry(action.Raw, action.Err)

		case protocol.KindPluginInvoke:
			if pluginRounds >= c.cfg.MaxIterations {
				log.Printf("orchestrator: request %s: iteration bound %d reached", requestID, c.cfg.MaxIterations)
				return c.finish(maxIterationsOutcome(requestID, records, pluginRounds)), nil
			}
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			result := c.dispatch(ctx, action)
			pluginRounds++
			records = append(records, IterationRecord{Index: len(records), Action: action, Result: &result})
			asm.appendPluginRound(action, result)
		}
	}
}

// dispatch resolves and executes one plugin request. An unknown
// plugin id never reaches an executor; it becomes a synthesized
// failure fed back in the same round.
func (c *Controller) dispatch(ctx context.Context, action protocol.Action) plugin.Result {
	entry, ok := c.registry.Lookup(action.PluginID)
	if !ok {
		log.Printf("orchestrator: unknown plugin %q requested", action.PluginID)
		result := plugin.Fail(fmt.Sprintf("unknown plugin %q", action.PluginID))
		c.record(action, result, 0)
		return result
	}

	start := time.Now()
	result := c.runner.Execute(ctx, entry.Descriptor.ID, entry.Plugin, action.Input, entry.Descriptor.Timeout)
	c.record(action, result, time.Since(start))
	return result
}

// RunDirect executes a single plugin outside the model loop. Used by
// the scheduler for timed jobs.
func (c *Controller) RunDirect(ctx context.Context, pluginID string, input map[string]any) plugin.Result {
	return c.dispatch(ctx, protocol.PluginInvoke(pluginID, input, "direct invocation"))
}

func (c *Controller) record(action protocol.Action, result plugin.Result, elapsed time.Duration) {
	if c.tracker != nil {
		c.tracker.Record(UsageEvent{
			PluginID: action.PluginID,
			Reason:   action.Reason,
			Success:  result.Success,
			Elapsed:  elapsed,
			At:       time.Now(),
		})
	}
	if c.observer != nil {
		c.observer.PluginExecuted(action.PluginID, result.Success, elapsed)
	}
}

func (c *Controller) finish(outcome *Outcome) *Outcome {
	if c.observer != nil {
		c.observer.RequestFinished(outcome)
	}
	return outcome
}
