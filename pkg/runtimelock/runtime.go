package runtimelock

import (
	"sync"
)

// Runtime runs tasks cooperatively: every task holds the runtime's lock
// while it executes, so at most one task runs at a time unless a task
// suspends the lock around a blocking call.
type Runtime struct {
	lock *Lock
	wg   sync.WaitGroup
}

// NewRuntime returns a runtime with its own lock.
func NewRuntime() *Runtime {
	return &Runtime{lock: New()}
}

// Lock returns the lock tasks hold while they run. Pass it to code that
// needs to suspend it, such as the audio bridge.
func (r *Runtime) Lock() *Lock {
	return r.lock
}

// Go starts fn as a task. fn runs with the runtime lock held.
func (r *Runtime) Go(fn func()) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.lock.Acquire()
		defer r.lock.Release()
		fn()
	}()
}

// Wait blocks until every started task has returned.
func (r *Runtime) Wait() {
	r.wg.Wait()
}
