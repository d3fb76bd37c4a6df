// Package resource enforces the Concurrent Orchestrator's per-window
// resource budgets: tokens per minute, cost per hour, and concurrent
// provider calls (spec.md §4.6 "ConcurrencyPolicy").
package resource

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Budget names the three resource dimensions the orchestrator gates
// dispatch on before handing a task to an agent runtime.
type Budget struct {
	TokensPerMinute   float64
	CostPerHourUSD    float64
	ConcurrentCalls   int
}

// Reservation is released once the call it was acquired for completes, so
// its concurrency slot is freed and its actual cost is recorded. Tokens
// taken from the tokens-per-minute bucket at Acquire are not returned.
type Reservation interface {
	// Release records the call's actual cost and frees its concurrency slot.
	Release(tokensUsed int, costUSD float64)
}

// Limiter gates dispatch against a Budget. Acquire blocks until the
// tokens-per-minute bucket has capacity, a concurrency slot is free, and the
// rolling hourly spend has headroom, or ctx is done.
type Limiter interface {
	Acquire(ctx context.Context, estimatedTokens int) (Reservation, error)
}

type limiter struct {
	tokens *rate.Limiter
	sem    chan struct{}

	mu        sync.Mutex
	costPerHr float64
	spend     []spendEntry
	clock     func() time.Time
}

type spendEntry struct {
	at   time.Time
	cost float64
}

// New builds an in-process Limiter enforcing budget. A zero value in any
// field disables that dimension's gate.
func New(budget Budget) Limiter {
	return newWithClock(budget, time.Now)
}

func newWithClock(budget Budget, clock func() time.Time) *limiter {
	l := &limiter{costPerHr: budget.CostPerHourUSD, clock: clock}
	if budget.TokensPerMinute > 0 {
		l.tokens = rate.NewLimiter(rate.Limit(budget.TokensPerMinute/60.0), int(budget.TokensPerMinute))
	}
	if budget.ConcurrentCalls > 0 {
		l.sem = make(chan struct{}, budget.ConcurrentCalls)
	}
	return l
}

func (l *limiter) Acquire(ctx context.Context, estimatedTokens int) (Reservation, error) {
	if l.sem != nil {
		select {
		case l.sem <- struct{}{}:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if l.tokens != nil {
		n := estimatedTokens
		if n < 1 {
			n = 1
		}
		if err := l.tokens.WaitN(ctx, n); err != nil {
			l.release()
			return nil, err
		}
	}
	if l.costPerHr > 0 {
		for {
			if l.headroomUSD() > 0 {
				break
			}
			select {
			case <-ctx.Done():
				l.release()
				return nil, ctx.Err()
			case <-time.After(time.Second):
			}
		}
	}
	return &reservation{l: l}, nil
}

func (l *limiter) release() {
	if l.sem != nil {
		<-l.sem
	}
}

func (l *limiter) headroomUSD() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	cutoff := l.clock().Add(-time.Hour)
	kept := l.spend[:0]
	var spent float64
	for _, e := range l.spend {
		if e.at.After(cutoff) {
			kept = append(kept, e)
			spent += e.cost
		}
	}
	l.spend = kept
	return l.costPerHr - spent
}

func (l *limiter) recordSpend(costUSD float64) {
	if l.costPerHr <= 0 || costUSD <= 0 {
		return
	}
	l.mu.Lock()
	l.spend = append(l.spend, spendEntry{at: l.clock(), cost: costUSD})
	l.mu.Unlock()
}

type reservation struct {
	l        *limiter
	released bool
	mu       sync.Mutex
}

func (r *reservation) Release(tokensUsed int, costUSD float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.released {
		return
	}
	r.released = true
	r.l.recordSpend(costUSD)
	r.l.release()
}
