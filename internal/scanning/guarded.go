package scanning

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"
)

// GuardConfig configures request pacing and failure isolation for a Scanner
type GuardConfig struct {
	Name string
	// RPM is the allowed requests per minute (0 = unlimited)
	RPM int
	// Burst is the number of requests allowed at once
	Burst int
	// FailureThreshold is the number of consecutive failures that opens the breaker
	FailureThreshold uint32
	// OpenTimeout is how long the breaker stays open before probing again
	OpenTimeout time.Duration
}

// DefaultGuardConfig matches the Azure free tier limit of 20 calls per minute
func DefaultGuardConfig(name string) GuardConfig {
	return GuardConfig{
		Name:             name,
		RPM:              20,
		Burst:            1,
		FailureThreshold: 5,
		OpenTimeout:      30 * time.Second,
	}
}

// Guarded wraps a Scanner with a rate limiter and a circuit breaker
type Guarded struct {
	next    Scanner
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker[[]string]
}

// NewGuarded creates a new Guarded Scanner around next
func NewGuarded(next Scanner, cfg GuardConfig) *Guarded {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RPM > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.RPM)/60.0), burst)
	}

	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}

	breaker := gobreaker.NewCircuitBreaker[[]string](gobreaker.Settings{
		Name:    cfg.Name,
		Timeout: cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		// A bad or unreadable image says nothing about the provider's health
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrNoText) || errors.Is(err, ErrUnsupportedImage)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("OCR circuit breaker state changed", "scanner", name, "from", from.String(), "to", to.String())
		},
	})

	return &Guarded{
		next:    next,
		limiter: limiter,
		breaker: breaker,
	}
}

// ReadLines waits for a rate limit slot and calls the wrapped Scanner
func (g *Guarded) ReadLines(ctx context.Context, imageData []byte, contentType string) ([]string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: waiting for rate limit: %v", ErrUpstreamUnavailable, err)
	}

	lines, err := g.breaker.Execute(func() ([]string, error) {
		return g.next.ReadLines(ctx, imageData, contentType)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	return lines, err
}

// Close closes the wrapped Scanner
func (g *Guarded) Close() error {
	return g.next.Close()
}
