// Package failover walks a chain of candidate models when a
// completion fails: it rotates credentials within one provider on
// rate-limit and auth errors, then moves to the next fallback model.
package failover

import (
	"context"
	"time"

	"github.com/libreassistant/libreassistant/internal/auth"
	"github.com/libreassistant/libreassistant/internal/provider"
)

const maxRotationsPerModel = 3

type Controller struct {
	registry  *provider.Registry
	rotator   *auth.Rotator
	cooldowns *auth.CooldownTracker
	fallbacks []provider.ModelRef
}

func NewController(
	registry *provider.Registry,
	rotator *auth.Rotator,
	cooldowns *auth.CooldownTracker,
	fallbacks []provider.ModelRef,
) *Controller {
	return &Controller{
		registry:  registry,
		rotator:   rotator,
		cooldowns: cooldowns,
		fallbacks: fallbacks,
	}
}

// Complete tries the requested model first, then each configured
// fallback. sessionID keeps credential pinning stable across the
// iterations of one orchestrated request.
func (c *Controller) Complete(
	ctx context.Context,
	model provider.ModelRef,
	sessionID string,
	req *provider.CompletionRequest,
) (*provider.CompletionResponse, error) {
	candidates := append([]provider.ModelRef{model}, c.fallbacks...)
	attempted := make([]string, 0, len(candidates))

	for _, m := range candidates {
		if containsRef(attempted, m.String()) {
			continue
		}
		attempted = append(attempted, m.String())

		if c.rotator.AllInCooldown(m.Provider(), time.Now()) {
			continue
		}

		resp, err := c.tryWithRotation(ctx, m, sessionID, req)
		if err == nil {
			return resp, nil
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		if !IsRetryable(err) {
			return nil, err
		}
	}

	return nil, &AllExhaustedError{Attempted: attempted}
}

func (c *Controller) tryWithRotation(
	ctx context.Context,
	model provider.ModelRef,
	sessionID string,
	req *provider.CompletionRequest,
) (*provider.CompletionResponse, error) {
	p, err := c.registry.GetForModel(model)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	var lastErr error

	for attempt := 0; attempt < maxRotationsPerModel; attempt++ {
		profile, err := c.rotator.Select(model.Provider(), sessionID, now)
		if err != nil {
			if lastErr != nil {
				return nil, lastErr
			}
			return nil, err
		}

		attemptReq := *req
		attemptReq.Model = model.Model()

		client := p
		if cred := profile.Credential(); cred != "" {
			client = p.WithCredential(cred)
		}

		resp, err := client.Complete(ctx, &attemptReq)
		if err == nil {
			c.cooldowns.Reset(profile)
			return resp, nil
		}

		lastErr = err
		if IsRateLimitError(err) || IsAuthError(err) {
			c.cooldowns.PutInCooldown(profile, now)
			continue
		}

		return nil, err
	}

	return nil, lastErr
}

func containsRef(slice []string, s string) bool {
	for _, item := range slice {
		if item == s {
			return true
		}
	}
	return false
}
