// rate_limiter.go - Rate limiting for statement submissions
package main

import (
	"sync"
	"time"
)

// RateLimiter implements a simple token bucket rate limiter
type RateLimiter struct {
	mu           sync.Mutex
	tokens       int
	maxTokens    int
	refillRate   int
	lastRefill   time.Time
	refillPeriod time.Duration
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(maxTokens int, refillRate int, refillPeriod time.Duration) *RateLimiter {
	return &RateLimiter{
		tokens:       maxTokens,
		maxTokens:    maxTokens,
		refillRate:   refillRate,
		lastRefill:   time.Now(),
		refillPeriod: refillPeriod,
	}
}

// Allow checks if a request is allowed and consumes a token if so
func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	refillCount := int(now.Sub(rl.lastRefill) / rl.refillPeriod)
	if refillCount > 0 {
		rl.tokens += refillCount * rl.refillRate
		if rl.tokens > rl.maxTokens {
			rl.tokens = rl.maxTokens
		}
		rl.lastRefill = now
	}

	if rl.tokens > 0 {
		rl.tokens--
		return true
	}
	return false
}

// PeerRateLimiter manages rate limiting per submitting peer
type PeerRateLimiter struct {
	mu           sync.Mutex
	limiters     map[string]*RateLimiter
	maxTokens    int
	refillRate   int
	refillPeriod time.Duration
}

// NewPeerRateLimiter creates a new per-peer rate limiter
func NewPeerRateLimiter(maxTokens int, refillRate int, refillPeriod time.Duration) *PeerRateLimiter {
	return &PeerRateLimiter{
		limiters:     make(map[string]*RateLimiter),
		maxTokens:    maxTokens,
		refillRate:   refillRate,
		refillPeriod: refillPeriod,
	}
}

// Allow checks if a submission from a peer is allowed
func (prl *PeerRateLimiter) Allow(peerID string) bool {
	prl.mu.Lock()
	limiter, exists := prl.limiters[peerID]
	if !exists {
		limiter = NewRateLimiter(prl.maxTokens, prl.refillRate, prl.refillPeriod)
		prl.limiters[peerID] = limiter
	}
	prl.mu.Unlock()

	return limiter.Allow()
}
