package ratelimit

import (
	"sync"
	"time"
)

// Rule is a token bucket shape. A zero Capacity disables limiting.
type Rule struct {
	Capacity     float64
	RefillPerSec float64
}

type bucket struct {
	tokens float64
	rule   Rule
	last   time.Time
}

// Limiter keeps one token bucket per key.
type Limiter struct {
	mu    sync.Mutex
	rules map[string]Rule
	m     map[string]*bucket
	now   func() time.Time
}

// New creates a limiter with per-key rules. Keys without a rule are never limited.
func New(rules map[string]Rule) *Limiter {
	r := make(map[string]Rule, len(rules))
	for k, v := range rules {
		r[k] = v
	}
	return &Limiter{rules: r, m: make(map[string]*bucket), now: time.Now}
}

// Allow returns true if one token can be consumed for key.
func (l *Limiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	rule, ok := l.rules[key]
	if !ok || rule.Capacity <= 0 {
		return true
	}

	now := l.now()
	b, ok := l.m[key]
	if !ok {
		b = &bucket{tokens: rule.Capacity, rule: rule, last: now}
		l.m[key] = b
	}
	if elapsed := now.Sub(b.last).Seconds(); elapsed > 0 {
		b.tokens += elapsed * b.rule.RefillPerSec
		if b.tokens > b.rule.Capacity {
			b.tokens = b.rule.Capacity
		}
		b.last = now
	}
	if b.tokens >= 1 {
		b.tokens--
		return true
	}
	return false
}
