package failover

import (
	"errors"
	"fmt"

	"github.com/libreassistant/libreassistant/internal/provider"
)

func statusOf(err error) (int, bool) {
	var apiErr *provider.APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode, true
	}
	return 0, false
}

func IsRateLimitError(err error) bool {
	code, ok := statusOf(err)
	return ok && code == 429
}

func IsAuthError(err error) bool {
	code, ok := statusOf(err)
	return ok && (code == 401 || code == 403)
}

// IsRetryable reports whether the next model in the fallback chain is
// worth trying. Anything that is not a service-side condition (bad
// request, cancelled context, local bug) fails the whole request.
func IsRetryable(err error) bool {
	code, ok := statusOf(err)
	return ok && (code == 429 || code == 401 || code == 403 || code >= 500)
}

// AllExhaustedError means every candidate model was tried and none
// produced a turn.
type AllExhaustedError struct {
	Attempted []string
}

func (e *AllExhaustedError) Error() string {
	return fmt.Sprintf("all models exhausted, attempted: %v", e.Attempted)
}
