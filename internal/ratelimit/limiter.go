// Package ratelimit provides per-key token bucket rate limiting for the MCP
// tools and the HTTP API.
package ratelimit

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/nvandessel/qiflow/internal/constants"
)

// ErrRateLimited is returned (wrapped) when a key has no tokens left.
var ErrRateLimited = errors.New("rate limit exceeded")

// Limiter is a token bucket per key (tool name or client address), all
// sharing one rate and burst. It is safe for concurrent use.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	rate    float64          // tokens per second
	burst   int              // max burst size (also initial token count)
	nowFunc func() time.Time // injectable clock for testing
}

type bucket struct {
	tokens    float64
	lastCheck time.Time
}

// NewLimiter returns a limiter refilling rate tokens per second up to burst.
// New keys start full.
func NewLimiter(rate float64, burst int) *Limiter {
	return &Limiter{
		buckets: make(map[string]*bucket),
		rate:    rate,
		burst:   burst,
		nowFunc: time.Now,
	}
}

// Allow spends one token from key's bucket, reporting false when it is empty.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.nowFunc()

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(l.burst), lastCheck: now}
		l.buckets[key] = b
	}

	elapsed := now.Sub(b.lastCheck).Seconds()
	if elapsed > 0 {
		b.tokens = min(b.tokens+l.rate*elapsed, float64(l.burst))
		b.lastCheck = now
	}

	if b.tokens < 1.0 {
		return false
	}
	b.tokens--
	return true
}

// Prune drops buckets idle for longer than idle, returning how many were
// removed. A dropped key starts again with a full burst. HTTP callers key
// buckets by client address and prune periodically.
func (l *Limiter) Prune(idle time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.nowFunc().Add(-idle)
	var n int
	for k, b := range l.buckets {
		if b.lastCheck.Before(cutoff) {
			delete(l.buckets, k)
			n++
		}
	}
	return n
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// ToolLimiters maps tool names to their rate limiters.
type ToolLimiters map[string]*Limiter

// NewToolLimiters creates the default set of per-tool rate limiters.
// Analyses are cheap; sampling runs hundreds of them per call.
func NewToolLimiters() ToolLimiters {
	return ToolLimiters{
		constants.ToolAnalyze: NewLimiter(2.0, 20),      // 120/minute, burst 20
		constants.ToolWealth:  NewLimiter(2.0, 20),      // 120/minute, burst 20
		constants.ToolGraph:   NewLimiter(30.0/60.0, 5), // 30/minute, burst 5
		constants.ToolSample:  NewLimiter(10.0/60.0, 2), // 10/minute, burst 2
	}
}

// CheckLimit checks the rate limit for a given tool name.
// Returns nil if allowed, or an error wrapping ErrRateLimited.
// Tools without a configured limiter are always allowed.
func CheckLimit(limiters ToolLimiters, toolName string) error {
	limiter, ok := limiters[toolName]
	if !ok {
		return nil
	}
	if !limiter.Allow(toolName) {
		return fmt.Errorf("%w for %s, please try again shortly", ErrRateLimited, toolName)
	}
	return nil
}
