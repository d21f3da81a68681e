package ratelimit

import (
	"fmt"
	"sync"
	"time"
)

// Budget tracks per-user submission counts within fixed time windows.
type Budget struct {
	mu     sync.Mutex
	counts map[string]*windowCounter

	maxPerWindow int
	windowSize   time.Duration
	now          func() time.Time
}

type windowCounter struct {
	count     int
	windowEnd time.Time
}

// NewBudget creates a budget. maxPerWindow limits calls per (user, operation)
// within windowSize; zero disables the budget.
func NewBudget(maxPerWindow int, windowSize time.Duration) *Budget {
	return &Budget{
		counts:       make(map[string]*windowCounter),
		maxPerWindow: maxPerWindow,
		windowSize:   windowSize,
		now:          time.Now,
	}
}

func budgetKey(user, operation string) string {
	return user + "|" + operation
}

// Take records a call and returns an error if the user has already used up
// the budget for operation in the current window.
func (b *Budget) Take(user, operation string) error {
	if b == nil || b.maxPerWindow <= 0 {
		return nil
	}
	b.mu.Lock()
	defer b.mu.Unlock()

	key := budgetKey(user, operation)
	wc, ok := b.counts[key]
	if !ok || b.now().After(wc.windowEnd) {
		b.counts[key] = &windowCounter{count: 1, windowEnd: b.now().Add(b.windowSize)}
		return nil
	}
	if wc.count >= b.maxPerWindow {
		return fmt.Errorf("submission budget exceeded: user %s operation %s (%d/%d in window)",
			user, operation, wc.count, b.maxPerWindow)
	}
	wc.count++
	return nil
}
