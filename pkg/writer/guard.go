package writer

import (
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
)

// errGuardPoisoned is returned when acquiring a guard whose previous holder panicked.
var errGuardPoisoned = errors.New("previous holder panicked")

// PanicError carries a panic recovered inside a guarded section. The guard is
// poisoned from then on.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic while holding lock: %v", e.Value)
}

// Unwrap lets errors.Is(err, errGuardPoisoned) hold for the panicking call too.
func (e *PanicError) Unwrap() error {
	return errGuardPoisoned
}

// mutexGuard is a mutex that records a panic inside its critical section.
// Once poisoned, every later acquisition fails.
type mutexGuard struct {
	mu       sync.Mutex
	poisoned atomic.Bool
}

// do runs fn exclusively.
func (g *mutexGuard) do(fn func() error) (err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.poisoned.Load() {
		return errGuardPoisoned
	}
	defer func() {
		if v := recover(); v != nil {
			g.poisoned.Store(true)
			err = &PanicError{Value: v, Stack: debug.Stack()}
		}
	}()
	return fn()
}

func (g *mutexGuard) isPoisoned() bool {
	return g.poisoned.Load()
}

// rwGuard is the shared/exclusive counterpart of mutexGuard. A panic in
// either kind of section poisons it.
type rwGuard struct {
	mu       sync.RWMutex
	poisoned atomic.Bool
}

func (g *rwGuard) read(fn func() error) (err error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if g.poisoned.Load() {
		return errGuardPoisoned
	}
	defer func() {
		if v := recover(); v != nil {
			g.poisoned.Store(true)
			err = &PanicError{Value: v, Stack: debug.Stack()}
		}
	}()
	return fn()
}

func (g *rwGuard) write(fn func() error) (err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.poisoned.Load() {
		return errGuardPoisoned
	}
	defer func() {
		if v := recover(); v != nil {
			g.poisoned.Store(true)
			err = &PanicError{Value: v, Stack: debug.Stack()}
		}
	}()
	return fn()
}

func (g *rwGuard) isPoisoned() bool {
	return g.poisoned.Load()
}
