package llm

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/checklist-cli/internal/resilience"
)

// Guarded wraps a Provider with a request rate limit and a circuit breaker.
// Both are shared by every extraction that uses the provider.
type Guarded struct {
	Provider
	limiter *rate.Limiter
	breaker *resilience.CircuitBreaker
}

// Guard wraps p. A nil limiter or breaker disables that guard.
func Guard(p Provider, limiter *rate.Limiter, breaker *resilience.CircuitBreaker) *Guarded {
	return &Guarded{Provider: p, limiter: limiter, breaker: breaker}
}

// PerMinute builds a limiter allowing rpm requests per minute with a burst
// of one. Non-positive rpm means unlimited.
func PerMinute(rpm int) *rate.Limiter {
	if rpm <= 0 {
		return rate.NewLimiter(rate.Inf, 0)
	}
	return rate.NewLimiter(rate.Limit(float64(rpm)/60.0), 1)
}

// Complete waits for the limiter, then calls through the breaker.
func (g *Guarded) Complete(ctx context.Context, p Prompt, model string) (string, error) {
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return "", eris.Wrapf(err, "%s: rate limit wait", g.Name())
		}
	}

	if g.breaker == nil {
		return g.Provider.Complete(ctx, p, model)
	}

	text, err := resilience.ExecuteVal(ctx, g.breaker, func(ctx context.Context) (string, error) {
		return g.Provider.Complete(ctx, p, model)
	})
	if err != nil && eris.Is(err, resilience.ErrCircuitOpen) {
		zap.L().Debug("llm: provider short-circuited",
			zap.String("provider", string(g.Name())),
			zap.String("model", model),
		)
	}
	return text, err
}
