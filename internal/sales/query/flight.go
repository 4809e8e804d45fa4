package query

import (
	"context"
	"fmt"
	"sync"

	"github.com/xtxerr/etos/internal/errors"
	"golang.org/x/sync/singleflight"
)

// flights collapses identical in-flight queries. The shared scan runs on a
// context detached from any single caller and is cancelled once every caller
// waiting on it has gone.
type flights struct {
	group singleflight.Group

	mu     sync.Mutex
	active map[string]*flight
}

type flight struct {
	ctx     context.Context
	cancel  context.CancelFunc
	waiters int
}

func newFlights() *flights {
	return &flights{active: make(map[string]*flight)}
}

// do runs fn once per key among concurrent callers. It returns early if ctx
// ends before the shared call does: with the caller's context error, or with
// ErrScanTimeout if the caller's deadline passed. shared is true if the value
// was produced for more than one caller.
func (f *flights) do(ctx context.Context, key string, fn func(context.Context) (any, error)) (v any, shared bool, err error) {
	f.mu.Lock()
	fl, ok := f.active[key]
	if !ok {
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		fl = &flight{ctx: fctx, cancel: cancel}
		f.active[key] = fl
	}
	fl.waiters++
	f.mu.Unlock()

	defer f.leave(key, fl)

	ch := f.group.DoChan(key, func() (any, error) {
		defer f.finish(key, fl)
		return fn(fl.ctx)
	})

	select {
	case res := <-ch:
		return res.Val, res.Shared, res.Err
	case <-ctx.Done():
		return nil, false, callerErr(ctx)
	}
}

// callerErr is the error of a caller that stopped waiting. The shared call
// runs without the caller's deadline, so an expired deadline is reported the
// same way as a scan that ran out of time.
func callerErr(ctx context.Context) error {
	err := ctx.Err()
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", errors.ErrScanTimeout, err)
	}
	return err
}

// leave drops one waiter. The last waiter cancels the shared call and makes
// sure later callers start a fresh one.
func (f *flights) leave(key string, fl *flight) {
	f.mu.Lock()
	defer f.mu.Unlock()

	fl.waiters--
	if fl.waiters > 0 {
		return
	}
	fl.cancel()
	if f.active[key] == fl {
		delete(f.active, key)
		f.group.Forget(key)
	}
}

func (f *flights) finish(key string, fl *flight) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.active[key] == fl {
		delete(f.active, key)
	}
}
