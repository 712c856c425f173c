// Package plugin defines the execution contract every capability
// implements and the guarded runner the orchestrator dispatches through.
package plugin

import "context"

// Plugin is the contract a single capability implements. Execute
// receives the model-supplied input mapping and returns the plugin's
// output value. Implementations must honor ctx cancellation; the
// runner imposes the timeout.
type Plugin interface {
	Execute(ctx context.Context, input map[string]any) (any, error)
}

// Func adapts a plain function to the Plugin interface.
type Func func(ctx context.Context, input map[string]any) (any, error)

func (f Func) Execute(ctx context.Context, input map[string]any) (any, error) {
	return f(ctx, input)
}

// Result is the outcome of one plugin execution. Output and Error are
// never both populated; use OK and Fail to construct.
type Result struct {
	Success bool   `json:"success"`
	Output  any    `json:"output,omitempty"`
	Error   string `json:"error,omitempty"`
}

// OK returns a successful result carrying output.
func OK(output any) Result {
	return Result{Success: true, Output: output}
}

// Fail returns a failed result carrying an error message.
func Fail(msg string) Result {
	return Result{Success: false, Error: msg}
}
