// Package embedding wraps an embedding backend behind a retrying,
// normalizing gateway. Vectors leaving the gateway are L2-normalized so
// inner-product similarity downstream equals cosine similarity.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"time"
)

// ErrUnavailable is surfaced after the backend keeps failing past the
// configured retry budget, or the caller's context expires.
var ErrUnavailable = errors.New("embedding backend unavailable")

type Backend interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

type Gateway struct {
	backend    Backend
	maxRetries int
	baseDelay  time.Duration
}

// NewGateway builds a gateway retrying up to maxRetries times with
// exponential backoff plus jitter before surfacing ErrUnavailable.
func NewGateway(backend Backend, maxRetries int, baseDelay time.Duration) *Gateway {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if baseDelay <= 0 {
		baseDelay = 200 * time.Millisecond
	}
	return &Gateway{backend: backend, maxRetries: maxRetries, baseDelay: baseDelay}
}

func (g *Gateway) Embed(ctx context.Context, text string) ([]float32, error) {
	var lastErr error

	for attempt := 0; attempt <= g.maxRetries; attempt++ {
		if attempt > 0 {
			delay := g.baseDelay << (attempt - 1)
			delay += time.Duration(rand.Int63n(int64(g.baseDelay)))
			slog.DebugContext(ctx, "retrying embedding", "attempt", attempt, "delay", delay)
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
			case <-time.After(delay):
			}
		}

		vec, err := g.backend.Embed(ctx, text)
		if err == nil {
			if len(vec) == 0 {
				return nil, fmt.Errorf("%w: backend returned empty vector", ErrUnavailable)
			}
			return Normalize(vec), nil
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
	}

	return nil, fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

// Normalize scales vec to unit L2 norm. A zero vector is returned
// unchanged since it has no direction to preserve.
func Normalize(vec []float32) []float32 {
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	if sum == 0 {
		return vec
	}
	norm := math.Sqrt(sum)
	out := make([]float32, len(vec))
	for i, v := range vec {
		out[i] = float32(float64(v) / norm)
	}
	return out
}
