package sync

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/xtxerr/etos/internal/errors"
)

func TestSlots_EnterSupersedes(t *testing.T) {
	slots := NewSlots()

	first, releaseFirst := slots.Enter(context.Background(), "detail")
	defer releaseFirst()

	second, releaseSecond := slots.Enter(context.Background(), "detail")
	defer releaseSecond()

	select {
	case <-first.Done():
	case <-time.After(time.Second):
		t.Fatal("first call was not cancelled")
	}

	if !Superseded(first) {
		t.Errorf("first call: expected superseded, cause %v", context.Cause(first))
	}
	if second.Err() != nil {
		t.Errorf("second call should still run, got %v", second.Err())
	}
	if Superseded(second) {
		t.Error("second call should not be superseded")
	}
}

func TestSlots_IndependentSlots(t *testing.T) {
	slots := NewSlots()

	a, releaseA := slots.Enter(context.Background(), "detail")
	defer releaseA()
	b, releaseB := slots.Enter(context.Background(), "cross")
	defer releaseB()

	if a.Err() != nil || b.Err() != nil {
		t.Errorf("different slots must not cancel each other: %v, %v", a.Err(), b.Err())
	}
	if n := active(slots); n != 2 {
		t.Errorf("active = %d, want 2", n)
	}
}

func TestSlots_Release(t *testing.T) {
	slots := NewSlots()

	ctx, release := slots.Enter(context.Background(), "detail")
	release()
	release()

	if n := active(slots); n != 0 {
		t.Errorf("active = %d, want 0", n)
	}
	if ctx.Err() == nil {
		t.Error("released context should be done")
	}
	if Superseded(ctx) {
		t.Error("a finished call is not superseded")
	}

	// Releasing a superseded call must not remove its successor.
	_, releaseOld := slots.Enter(context.Background(), "detail")
	_, releaseNew := slots.Enter(context.Background(), "detail")
	releaseOld()
	if n := active(slots); n != 1 {
		t.Errorf("active = %d after old release, want 1", n)
	}
	releaseNew()
}

func TestErr(t *testing.T) {
	slots := NewSlots()

	old, releaseOld := slots.Enter(context.Background(), "detail")
	defer releaseOld()
	_, releaseNew := slots.Enter(context.Background(), "detail")
	defer releaseNew()

	err := Err(old, fmt.Errorf("scan: %w", context.Canceled))
	if !errors.Is(err, errors.ErrSuperseded) {
		t.Errorf("expected ErrSuperseded, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled in chain, got %v", err)
	}

	other := errors.NewMissingParameter("store")
	if got := Err(context.Background(), other); got != other {
		t.Errorf("unrelated error rewritten: %v", got)
	}
	if got := Err(old, nil); got != nil {
		t.Errorf("nil error rewritten: %v", got)
	}
}

func TestLazy_Get(t *testing.T) {
	var l Lazy[int]
	var calls atomic.Int32

	load := func() (int, error) {
		calls.Add(1)
		return 42, nil
	}

	for i := 0; i < 3; i++ {
		v, err := l.Get(load)
		if err != nil {
			t.Fatalf("Get: %v", err)
		}
		if v != 42 {
			t.Errorf("Get = %d, want 42", v)
		}
	}
	if c := calls.Load(); c != 1 {
		t.Errorf("load called %d times, want 1", c)
	}
	if !l.Loaded() {
		t.Error("Loaded() should be true")
	}
}

func TestLazy_ErrorNotCached(t *testing.T) {
	var l Lazy[string]
	boom := fmt.Errorf("boom")

	if _, err := l.Get(func() (string, error) { return "", boom }); err != boom {
		t.Errorf("Get returned %v, want boom", err)
	}
	if l.Loaded() {
		t.Error("failed load must not be cached")
	}

	v, err := l.Get(func() (string, error) { return "ok", nil })
	if err != nil || v != "ok" {
		t.Errorf("retry: got %q, %v", v, err)
	}
}

func TestLazy_Reset(t *testing.T) {
	var l Lazy[int]
	n := 0
	load := func() (int, error) {
		n++
		return n, nil
	}

	if v, _ := l.Get(load); v != 1 {
		t.Errorf("first Get = %d", v)
	}
	l.Reset()
	if l.Loaded() {
		t.Error("Loaded() should be false after Reset")
	}
	if v, _ := l.Get(load); v != 2 {
		t.Errorf("Get after Reset = %d, want 2", v)
	}
}

func TestLazy_Concurrent(t *testing.T) {
	var l Lazy[int]
	var calls atomic.Int32

	const goroutines = 50
	var wg sync.WaitGroup
	wg.Add(goroutines)

	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			l.Get(func() (int, error) {
				calls.Add(1)
				time.Sleep(5 * time.Millisecond)
				return 1, nil
			})
		}()
	}
	wg.Wait()

	if c := calls.Load(); c != 1 {
		t.Errorf("concurrent Get: load called %d times, want 1", c)
	}
}

func active(s *Slots) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.active)
}
