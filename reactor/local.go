package reactor

import (
	"context"
	"fmt"

	"github.com/realsocial/real/store"
)

// ErrNotSettled is returned when handlers keep producing changes past the
// round limit.
var ErrNotSettled = fmt.Errorf("reactor: changes did not settle")

// Local drives a dispatcher from an in-memory store, standing in for the
// table stream in tests and local replays.
type Local struct {
	Store      *store.Memory
	Dispatcher *Dispatcher
	// MaxRounds bounds the cascade depth. Zero means 64.
	MaxRounds int
}

// Settle dispatches pending changes, and the changes their handlers cause,
// until none remain. It returns the number of changes dispatched.
func (l *Local) Settle(ctx context.Context) (int, error) {
	limit := l.MaxRounds
	if limit <= 0 {
		limit = 64
	}
	n := 0
	for round := 0; round < limit; round++ {
		changes := l.Store.Drain()
		if len(changes) == 0 {
			return n, nil
		}
		for _, c := range changes {
			if err := l.Dispatcher.Dispatch(ctx, c); err != nil {
				return n, err
			}
			n++
		}
	}
	return n, fmt.Errorf("%w after %d rounds", ErrNotSettled, limit)
}

// Replay dispatches changes again, as a redelivering stream would.
func (l *Local) Replay(ctx context.Context, changes []store.Change) error {
	for _, c := range changes {
		if err := l.Dispatcher.Dispatch(ctx, c); err != nil {
			return err
		}
	}
	_, err := l.Settle(ctx)
	return err
}
