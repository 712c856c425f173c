package plugin

import (
	"context"
	"fmt"
	"time"
)

// DefaultTimeout bounds a plugin call when the descriptor carries no
// timeout of its own.
const DefaultTimeout = 30 * time.Second

// Runner invokes a single plugin with a bounded timeout and converts
// every failure mode (error return, panic, timeout, cancellation) into
// a failed Result. Nothing escapes past this boundary.
type Runner struct {
	defaultTimeout time.Duration
}

// NewRunner returns a runner using the given default timeout; zero
// means DefaultTimeout.
func NewRunner(defaultTimeout time.Duration) *Runner {
	if defaultTimeout <= 0 {
		defaultTimeout = DefaultTimeout
	}
	return &Runner{defaultTimeout: defaultTimeout}
}

// Execute runs p with the given input. timeout <= 0 uses the runner's
// default. The plugin body runs in its own goroutine so a hung plugin
// cannot stall the caller past the timeout.
func (r *Runner) Execute(ctx context.Context, pluginID string, p Plugin, input map[string]any, timeout time.Duration) Result {
	if p == nil {
		return Fail(fmt.Sprintf("plugin %q has no executor", pluginID))
	}
	if timeout <= 0 {
		timeout = r.defaultTimeout
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	done := make(chan Result, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				done <- Fail(fmt.Sprintf("plugin %q panicked: %v", pluginID, rec))
			}
		}()
		output, err := p.Execute(callCtx, input)
		if err != nil {
			done <- Fail(fmt.Sprintf("plugin %q: %v", pluginID, err))
			return
		}
		done <- OK(output)
	}()

	select {
	case res := <-done:
		return res
	case <-callCtx.Done():
		if ctx.Err() != nil {
			return Fail(fmt.Sprintf("plugin %q cancelled: %v", pluginID, ctx.Err()))
		}
		return Fail(fmt.Sprintf("plugin %q timed out after %s", pluginID, timeout))
	}
}
