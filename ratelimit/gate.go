// Package ratelimit gates external HTTP calls (the docs host and the
// embedding provider) behind per-target token buckets, so a bursty job
// runner never exceeds the external service's published limits.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Target names the two external collaborators docvault coordinates against.
const (
	TargetDocsHost        = "docs_host"
	TargetEmbeddingRPM    = "embedding_rpm"
	TargetEmbeddingTPM    = "embedding_tpm"
)

// bucket wraps a rate.Limiter with the penalize/restore bookkeeping the
// specification requires: on a 429 the effective rate is halved for a
// cool-down window and then restored linearly.
type bucket struct {
	mu          sync.Mutex
	limiter     *rate.Limiter
	normalLimit rate.Limit
	penalized   bool
	restoreDone chan struct{}
}

func newBucket(ratePerSec rate.Limit, burst int) *bucket {
	return &bucket{
		limiter:     rate.NewLimiter(ratePerSec, burst),
		normalLimit: ratePerSec,
	}
}

func (b *bucket) acquire(ctx context.Context, cost int) error {
	return b.limiter.WaitN(ctx, cost)
}

// penalize halves the bucket's rate for cooldown, then restores it linearly
// back to normal over the same window. Concurrent penalties collapse into a
// single restore goroutine.
func (b *bucket) penalize(cooldown time.Duration) {
	b.mu.Lock()
	if b.penalized {
		b.mu.Unlock()
		return
	}
	b.penalized = true
	halved := b.normalLimit / 2
	b.limiter.SetLimit(halved)
	done := make(chan struct{})
	b.restoreDone = done
	b.mu.Unlock()

	go b.restore(halved, cooldown, done)
}

func (b *bucket) restore(from rate.Limit, window time.Duration, done chan struct{}) {
	defer close(done)
	const steps = 30
	step := window / steps
	if step <= 0 {
		step = time.Second
	}
	increment := (b.normalLimit - from) / steps
	current := from
	ticker := time.NewTicker(step)
	defer ticker.Stop()
	for i := 0; i < steps; i++ {
		<-ticker.C
		current += increment
		if current > b.normalLimit {
			current = b.normalLimit
		}
		b.mu.Lock()
		b.limiter.SetLimit(current)
		b.mu.Unlock()
	}
	b.mu.Lock()
	b.limiter.SetLimit(b.normalLimit)
	b.penalized = false
	b.mu.Unlock()
}

// Gate holds one bucket per coordinated target.
type Gate struct {
	cooldown time.Duration
	mu       sync.RWMutex
	buckets  map[string]*bucket
}

// Config describes the burst capacity and steady-state rate for each target.
type Config struct {
	DocsHostRPM  int
	EmbeddingRPM int
	EmbeddingTPM int
	// Cooldown is the 429 cool-down window; defaults to 60s if zero.
	Cooldown time.Duration
}

// New builds a Gate with one bucket for the docs host and two for the
// embedding provider (requests/min and tokens/min), as specified.
func New(cfg Config) *Gate {
	cooldown := cfg.Cooldown
	if cooldown <= 0 {
		cooldown = 60 * time.Second
	}
	g := &Gate{
		cooldown: cooldown,
		buckets:  make(map[string]*bucket, 3),
	}
	g.buckets[TargetDocsHost] = newBucket(perMinute(cfg.DocsHostRPM), cfg.DocsHostRPM)
	g.buckets[TargetEmbeddingRPM] = newBucket(perMinute(cfg.EmbeddingRPM), cfg.EmbeddingRPM)
	g.buckets[TargetEmbeddingTPM] = newBucket(perMinute(cfg.EmbeddingTPM), cfg.EmbeddingTPM)
	return g
}

func perMinute(n int) rate.Limit {
	return rate.Limit(float64(n) / 60.0)
}

// Acquire blocks (respecting ctx) until cost tokens are available for
// target. Burst capacity equals the bucket's configured capacity; waiters
// queue FIFO per target, which is rate.Limiter's native behavior.
func (g *Gate) Acquire(ctx context.Context, target string, cost int) error {
	b := g.bucketFor(target)
	if b == nil {
		return nil
	}
	return b.acquire(ctx, cost)
}

// Penalize halves target's effective rate for the cool-down window and
// restores it linearly, per the specification's 429 handling policy.
func (g *Gate) Penalize(target string) {
	if b := g.bucketFor(target); b != nil {
		b.penalize(g.cooldown)
	}
}

func (g *Gate) bucketFor(target string) *bucket {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.buckets[target]
}
