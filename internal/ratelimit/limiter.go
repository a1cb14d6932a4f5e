package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/cayc/incubator/internal/adapter"
)

// Config holds the per-client request budget
type Config struct {
	// RequestsPerMinute is the sustained rate per client, zero disables limiting
	RequestsPerMinute int
	// Burst is the number of requests a client may send at once
	Burst int
	// IdleTTL evicts clients that have not been seen for this long
	IdleTTL time.Duration
}

// Limiter decides whether a client may make another request
//
//go:generate mockgen -source=limiter.go -destination=../mocks/ratelimit_limiter.go -package=mocks -mock_names=Limiter=MockRateLimiter
type Limiter interface {
	// Allow reports whether the client identified by key is within its budget
	Allow(key string) bool
}

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// keyedLimiter keeps one token bucket per client
type keyedLimiter struct {
	cfg     Config
	clock   adapter.Clock
	mu      sync.Mutex
	clients map[string]*clientLimiter
	swept   time.Time
}

// NewLimiter creates a per-client limiter. A zero rate allows every request.
func NewLimiter(cfg Config, clock adapter.Clock) Limiter {
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 10 * time.Minute
	}
	return &keyedLimiter{
		cfg:     cfg,
		clock:   clock,
		clients: make(map[string]*clientLimiter),
		swept:   clock.Now(),
	}
}

func (l *keyedLimiter) Allow(key string) bool {
	if l.cfg.RequestsPerMinute <= 0 {
		return true
	}

	now := l.clock.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.swept) >= l.cfg.IdleTTL {
		l.sweep(now)
	}

	c, ok := l.clients[key]
	if !ok {
		c = &clientLimiter{
			limiter: rate.NewLimiter(rate.Limit(float64(l.cfg.RequestsPerMinute)/60), l.cfg.Burst),
		}
		l.clients[key] = c
	}
	c.lastSeen = now

	return c.limiter.AllowN(now, 1)
}

// sweep drops idle clients, the caller holds mu
func (l *keyedLimiter) sweep(now time.Time) {
	for key, c := range l.clients {
		if now.Sub(c.lastSeen) >= l.cfg.IdleTTL {
			delete(l.clients, key)
		}
	}
	l.swept = now
}
