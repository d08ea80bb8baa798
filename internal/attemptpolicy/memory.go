package attemptpolicy

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/suleymanmyradov/auth-core/internal/clock"
)

type counterState struct {
	count       int
	windowEnds  time.Time
	blockedTill time.Time
}

// MemoryPolicy is a mutex-guarded in-memory Policy, for test profiles
// only. Per-key state is guarded by a single mutex rather than one lock
// per key since contention is not a concern outside tests.
type MemoryPolicy struct {
	mu            sync.Mutex
	state         map[string]*counterState
	maxAttempts   int
	window        time.Duration
	blockDuration time.Duration
	clock         clock.Clock
}

// NewMemoryPolicy builds a MemoryPolicy reading time from clk.
func NewMemoryPolicy(clk clock.Clock, maxAttempts int, window, blockDuration time.Duration) *MemoryPolicy {
	return &MemoryPolicy{
		state:         make(map[string]*counterState),
		maxAttempts:   maxAttempts,
		window:        window,
		blockDuration: blockDuration,
		clock:         clk,
	}
}

func (p *MemoryPolicy) RegisterAttempt(_ context.Context, key string) (Outcome, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.clock.Now()
	s := p.state[key]
	if s == nil {
		s = &counterState{}
		p.state[key] = s
	}

	if s.blockedTill.After(now) {
		return Outcome{Blocked: true, RetryAfterSeconds: int64(math.Ceil(s.blockedTill.Sub(now).Seconds()))}, nil
	}

	if s.windowEnds.Before(now) {
		s.count = 0
		s.windowEnds = now.Add(p.window)
	}
	s.count++

	if s.count > p.maxAttempts {
		s.blockedTill = now.Add(p.blockDuration)
		s.count = 0
		return Outcome{Blocked: true, RetryAfterSeconds: int64(p.blockDuration.Seconds())}, nil
	}

	return Outcome{Blocked: false}, nil
}

func (p *MemoryPolicy) ResetAttempts(_ context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	delete(p.state, key)
	return nil
}
