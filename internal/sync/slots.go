// Package sync provides the synchronization primitives of the query engine:
// supersedable call slots and a resettable lazily loaded value.
package sync

import (
	"context"
	"fmt"
	"sync"

	"github.com/xtxerr/etos/internal/errors"
)

// Slots tracks the in-flight call of every named slot. Entering a slot
// cancels the call currently in it, so only the most recent call per slot
// keeps running.
//
// Example usage:
//
//	ctx, release := slots.Enter(ctx, "detail")
//	defer release()
//	res, err := run(ctx)
//	err = slots.Err(ctx, err)
type Slots struct {
	mu     sync.Mutex
	active map[string]*slotCall
	seq    uint64
}

type slotCall struct {
	id     uint64
	cancel context.CancelCauseFunc
}

// NewSlots creates an empty slot registry.
func NewSlots() *Slots {
	return &Slots{active: make(map[string]*slotCall)}
}

// Enter starts a call in slot and returns its context. The previous call of
// the slot, if still running, is cancelled with cause ErrSuperseded. release
// must be called when the call returns; it is safe to call more than once.
func (s *Slots) Enter(ctx context.Context, slot string) (context.Context, func()) {
	cctx, cancel := context.WithCancelCause(ctx)

	s.mu.Lock()
	s.seq++
	call := &slotCall{id: s.seq, cancel: cancel}
	if prev, ok := s.active[slot]; ok {
		prev.cancel(errors.ErrSuperseded)
	}
	s.active[slot] = call
	s.mu.Unlock()

	release := func() {
		s.mu.Lock()
		if cur, ok := s.active[slot]; ok && cur.id == call.id {
			delete(s.active, slot)
		}
		s.mu.Unlock()
		cancel(context.Canceled)
	}
	return cctx, release
}

// Superseded reports whether ctx was cancelled by a newer call of its slot.
func Superseded(ctx context.Context) bool {
	return ctx.Err() != nil && errors.Is(context.Cause(ctx), errors.ErrSuperseded)
}

// Err rewrites the error of a call that ended because it was superseded into
// ErrSuperseded, keeping context.Canceled in the chain. Other errors are
// returned unchanged.
func Err(ctx context.Context, err error) error {
	if err == nil || !Superseded(ctx) {
		return err
	}
	if errors.Is(err, errors.ErrSuperseded) {
		return err
	}
	return fmt.Errorf("%w: %w", errors.ErrSuperseded, context.Canceled)
}
