package gateway

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"github.com/fyrsmithlabs/deployd/internal/config"
)

// Limiters holds the gateway's admission-control state: per-caller token
// buckets and the global in-flight semaphore. Constructed once and injected
// into the gateway, never ambient.
type Limiters struct {
	externalRPS float64
	perMinute   int

	mu       sync.Mutex
	external map[string]*rate.Limiter
	planning map[string]*rate.Limiter

	inflight chan struct{}
}

// NewLimiters builds limiter state from gateway configuration.
func NewLimiters(cfg config.GatewayConfig) *Limiters {
	maxInFlight := cfg.MaxInFlight
	if maxInFlight <= 0 {
		maxInFlight = 10
	}
	return &Limiters{
		externalRPS: cfg.ExternalRPS,
		perMinute:   cfg.PlanningPerMinute,
		external:    make(map[string]*rate.Limiter),
		planning:    make(map[string]*rate.Limiter),
		inflight:    make(chan struct{}, maxInFlight),
	}
}

// WaitExternal blocks until the caller's external-API bucket has a token.
func (l *Limiters) WaitExternal(ctx context.Context, caller string) error {
	return l.limiter(l.external, caller, rate.Limit(l.externalRPS), 1).Wait(ctx)
}

// WaitPlanning blocks until the session's planning bucket has a token.
func (l *Limiters) WaitPlanning(ctx context.Context, sessionID string) error {
	perSecond := rate.Limit(float64(l.perMinute) / 60.0)
	return l.limiter(l.planning, sessionID, perSecond, l.perMinute).Wait(ctx)
}

func (l *Limiters) limiter(m map[string]*rate.Limiter, key string, limit rate.Limit, burst int) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := m[key]
	if !ok {
		lim = rate.NewLimiter(limit, burst)
		m[key] = lim
	}
	return lim
}

// Acquire takes a slot in the global in-flight semaphore, queuing until one
// frees. Calls past the cap are never rejected, only delayed.
func (l *Limiters) Acquire(ctx context.Context) error {
	select {
	case l.inflight <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release frees a semaphore slot.
func (l *Limiters) Release() {
	<-l.inflight
}

// InFlight returns the number of currently held slots.
func (l *Limiters) InFlight() int {
	return len(l.inflight)
}
