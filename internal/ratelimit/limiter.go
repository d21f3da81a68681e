// Package ratelimit provides outbound request pacing and per-user submission
// budgets.
package ratelimit

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

// Request classes.
const (
	ClassAPI  = "api"
	ClassAuth = "auth"
	ClassLogs = "logs"
)

// ClassRates configures per-class request rates (requests per second). A
// zero rate leaves the class unlimited.
type ClassRates struct {
	API  float64
	Auth float64
}

// DefaultClassRates returns the default pacing.
func DefaultClassRates() ClassRates {
	return ClassRates{
		API:  10,
		Auth: 2,
	}
}

// Limiter paces outbound requests per class using token buckets.
type Limiter struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
}

// NewLimiter creates a limiter with the given per-class rates. The log
// stream is a single long-lived request and is never paced.
func NewLimiter(rates ClassRates) *Limiter {
	limiters := make(map[string]*rate.Limiter)
	if rates.API > 0 {
		limiters[ClassAPI] = rate.NewLimiter(rate.Limit(rates.API), burst(rates.API))
	}
	if rates.Auth > 0 {
		limiters[ClassAuth] = rate.NewLimiter(rate.Limit(rates.Auth), burst(rates.Auth))
	}
	return &Limiter{limiters: limiters}
}

func burst(r float64) int {
	if r < 1 {
		return 1
	}
	return int(r)
}

// Wait blocks until a token is available for class, or ctx is cancelled.
func (l *Limiter) Wait(ctx context.Context, class string) error {
	l.mu.RLock()
	limiter, ok := l.limiters[class]
	l.mu.RUnlock()
	if !ok {
		return nil // unknown class = no limit
	}
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limit %s: %w", class, err)
	}
	return nil
}

// ClassFor maps a request path to its class.
func ClassFor(path string) string {
	switch {
	case strings.HasPrefix(path, "/auth/"):
		return ClassAuth
	case path == "/api/logs":
		return ClassLogs
	default:
		return ClassAPI
	}
}
