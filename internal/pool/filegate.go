package pool

import (
	"fmt"
	"os"
	"sync"
	"syscall"
)

// fileGate is the file-lock Gate backend: maxSlots pre-created lock
// files under dir, each guarded by flock(2). A process claims a slot
// by locking the first file it can, and releases it by unlocking and
// closing the descriptor.
type fileGate struct {
	mu       sync.Mutex
	dir      string
	maxSlots int
	held     []*os.File
}

func newFileGate(dir string, maxSlots int) (Gate, error) {
	if maxSlots <= 0 {
		maxSlots = 1
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("pool: create gate dir: %w", err)
	}
	return &fileGate{dir: dir, maxSlots: maxSlots}, nil
}

// Acquire claims the first available slot file, blocking other
// processes from acquiring it via flock(2), and returns a release
// function. It does not block: if every slot is held elsewhere, it
// returns an error immediately so callers can apply their own timeout
// or retry policy.
func (g *fileGate) Acquire() (release func() error, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for i := 0; i < g.maxSlots; i++ {
		path := fmt.Sprintf("%s/slot-%d.lock", g.dir, i)
		f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
		if err != nil {
			return nil, fmt.Errorf("pool: open slot file: %w", err)
		}
		if flockErr := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); flockErr != nil {
			f.Close()
			continue
		}
		g.held = append(g.held, f)
		return func() error {
			g.mu.Lock()
			for idx, held := range g.held {
				if held == f {
					g.held = append(g.held[:idx], g.held[idx+1:]...)
					break
				}
			}
			g.mu.Unlock()
			syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
			return f.Close()
		}, nil
	}
	return nil, fmt.Errorf("pool: all %d gate slots held", g.maxSlots)
}

// Count reports how many of the gate's slots this process currently
// holds (not a global cross-process count, which advisory locks can't
// cheaply expose).
func (g *fileGate) Count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.held)
}
