//go:build !linux

package pool

import "fmt"

// newSemGate has no implementation outside Linux; NewGate falls back
// to the file-lock backend on every other platform.
func newSemGate(dir string, maxSlots int) (Gate, error) {
	return nil, fmt.Errorf("pool: named semaphore gate not available on this platform")
}
