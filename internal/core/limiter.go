package core

// limiter.go bounds how many analyze calls may be in flight at once.
//
// The console accepts requests concurrently, but the backend conversation
// model is one operator action at a time. Analyze acquires a slot before
// calling the backend; when every slot is taken it waits up to maxWait and
// then fails with ErrAnalysisBusy so the operator can retry.
//
// WaitForDrain lets shutdown wait for in-flight calls to finish.

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrAnalysisBusy is returned when no analyze slot frees up in time.
var ErrAnalysisBusy = errors.New("analysis already in progress, please wait for it to finish")

// DefaultMaxConcurrentAnalyses allows one analyze call at a time.
const DefaultMaxConcurrentAnalyses = 1

// DefaultAnalysisWait is how long a second request waits for a slot.
const DefaultAnalysisWait = 5 * time.Second

// Limiter is a counting semaphore over analyze calls.
type Limiter struct {
	slots   chan struct{}
	maxWait time.Duration

	mu     sync.RWMutex
	active int
}

// NewLimiter creates a limiter with maxConcurrent slots.
func NewLimiter(maxConcurrent int, maxWait time.Duration) *Limiter {
	if maxConcurrent <= 0 {
		maxConcurrent = DefaultMaxConcurrentAnalyses
	}
	if maxWait <= 0 {
		maxWait = DefaultAnalysisWait
	}

	return &Limiter{
		slots:   make(chan struct{}, maxConcurrent),
		maxWait: maxWait,
	}
}

// Acquire takes a slot, waiting at most maxWait.
// Callers must Release exactly once after a nil return.
func (l *Limiter) Acquire(ctx context.Context) error {
	waitCtx, cancel := context.WithTimeout(ctx, l.maxWait)
	defer cancel()

	select {
	case l.slots <- struct{}{}:
		l.mu.Lock()
		l.active++
		l.mu.Unlock()
		return nil
	case <-waitCtx.Done():
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return ErrAnalysisBusy
	}
}

// Release returns a slot taken by Acquire.
func (l *Limiter) Release() {
	l.mu.Lock()
	l.active--
	l.mu.Unlock()

	<-l.slots
}

// ActiveCount returns the number of analyze calls in flight.
func (l *Limiter) ActiveCount() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.active
}

// WaitForDrain blocks until no call is in flight or ctx ends.
func (l *Limiter) WaitForDrain(ctx context.Context) error {
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		if l.ActiveCount() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// LimiterStatus is a point-in-time view of the limiter.
type LimiterStatus struct {
	Active        int `json:"active"`
	Available     int `json:"available"`
	MaxConcurrent int `json:"maxConcurrent"`
}

// Status returns the current limiter state.
func (l *Limiter) Status() LimiterStatus {
	return LimiterStatus{
		Active:        l.ActiveCount(),
		Available:     cap(l.slots) - len(l.slots),
		MaxConcurrent: cap(l.slots),
	}
}
