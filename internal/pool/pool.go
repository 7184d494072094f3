// Package pool bounds the number of concurrently open store handles,
// both within one process (a weighted semaphore) and across processes
// sharing the same data directory (a counting gate with two
// interchangeable backends).
package pool

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// Pool bounds the number of concurrently open handles to a single
// store within this process.
type Pool struct {
	sem *semaphore.Weighted
	max int64
}

// New creates a Pool allowing at most maxHandles concurrently acquired
// handles.
func New(maxHandles int) *Pool {
	if maxHandles <= 0 {
		maxHandles = 1
	}
	return &Pool{sem: semaphore.NewWeighted(int64(maxHandles)), max: int64(maxHandles)}
}

// Acquire blocks until a handle slot is available or ctx is done.
func (p *Pool) Acquire(ctx context.Context) error {
	return p.sem.Acquire(ctx, 1)
}

// TryAcquire claims a handle slot without blocking, reporting whether
// one was available.
func (p *Pool) TryAcquire() bool {
	return p.sem.TryAcquire(1)
}

// Release returns a handle slot to the pool.
func (p *Pool) Release() {
	p.sem.Release(1)
}

// Max returns the configured handle limit.
func (p *Pool) Max() int64 { return p.max }

// Gate is a cross-process counting semaphore: at most maxSlots holders
// at a time, across however many processes point at the same data
// directory. Acquire does not block; callers apply their own retry or
// timeout policy around it.
//
// Two backends implement Gate. The named-semaphore backend (semGate,
// Linux only) claims a slot through a kernel semaphore keyed off the
// directory path, so contention is resolved without any shared file.
// The file-lock backend (fileGate) falls back to an advisory lock over
// a fixed set of slot files when the kernel facility isn't available.
// NewGate picks between them once, at construction time.
type Gate interface {
	Acquire() (release func() error, err error)
	Count() int
}

// NewGate returns a Gate managing maxSlots concurrent holders under
// dir, preferring the named-semaphore backend and falling back to
// per-slot file locks if that backend can't be constructed.
func NewGate(dir string, maxSlots int) (Gate, error) {
	if g, err := newSemGate(dir, maxSlots); err == nil {
		return g, nil
	}
	return newFileGate(dir, maxSlots)
}
