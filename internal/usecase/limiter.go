package usecase

import "context"

// Gate bounds the number of concurrently running tasks. Waiters are
// admitted in arrival order as running tasks finish; a task that panics or
// fails still releases its slot. Cancellation only applies while waiting
// for admission — an admitted task always runs to completion.
type Gate struct {
	slots chan struct{}
}

// NewGate creates a gate admitting at most limit concurrent tasks.
// A limit below 1 is treated as 1 (fully serialized).
func NewGate(limit int) *Gate {
	if limit < 1 {
		limit = 1
	}
	return &Gate{slots: make(chan struct{}, limit)}
}

// Execute runs task once a slot is available, releasing the slot when the
// task returns for any reason.
func (g *Gate) Execute(ctx context.Context, task func() error) error {
	select {
	case g.slots <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-g.slots }()
	return task()
}

// InFlight returns the number of currently admitted tasks.
func (g *Gate) InFlight() int {
	return len(g.slots)
}
