// Package runtimelock provides the exclusive-execution lock a caller holds
// while it runs, and a small cooperative runtime built on top of it.
//
// Code that is about to block for a long time (a native playback call, a
// fixed delay) suspends the lock so other tasks of the same runtime can run,
// then reacquires it before returning to its caller.
package runtimelock

import (
	"sync"
	"sync/atomic"
)

// Locker is the lock contract the audio bridge needs from its caller.
type Locker interface {
	// Release gives up exclusive execution.
	Release()
	// Acquire blocks until exclusive execution is regained.
	Acquire()
}

// Lock is an exclusive-execution lock. Unlike sync.Mutex it reports whether
// it is currently held, which callers use for assertions and diagnostics.
type Lock struct {
	mu   sync.Mutex
	held atomic.Bool
}

// New returns an unheld lock.
func New() *Lock {
	return &Lock{}
}

// Acquire blocks until the lock is held by the caller.
func (l *Lock) Acquire() {
	l.mu.Lock()
	l.held.Store(true)
}

// Release gives the lock up. Releasing an unheld lock is a fatal error, the
// same as for sync.Mutex.
func (l *Lock) Release() {
	l.held.Store(false)
	l.mu.Unlock()
}

// Held reports whether some task holds the lock right now.
func (l *Lock) Held() bool {
	return l.held.Load()
}

// Suspend releases l and returns the function that reacquires it. It is
// meant to be used as a scoped guard around a blocking call:
//
//	resume := runtimelock.Suspend(lock)
//	defer resume()
//
// The returned function reacquires at most once, so calling it twice is safe.
func Suspend(l Locker) (resume func()) {
	l.Release()
	var once sync.Once
	return func() {
		once.Do(l.Acquire)
	}
}

// Nop is a Locker that does nothing. It is the bridge default for callers
// that do not run under an exclusive lock.
type Nop struct{}

// Release implements Locker.
func (Nop) Release() {}

// Acquire implements Locker.
func (Nop) Acquire() {}
