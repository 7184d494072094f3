//go:build linux

package pool

import (
	"errors"
	"fmt"
	"hash/fnv"
	"sync/atomic"

	"golang.org/x/sys/unix"
)

// semGate is the named-semaphore Gate backend: a single SysV semaphore
// keyed off a hash of dir, so any process pointing at the same data
// directory contends for the same kernel object without sharing a
// lock file. The semaphore is created with value maxSlots on first
// use and never removed, mirroring the lifetime of the slot files the
// file-lock backend leaves behind.
type semGate struct {
	semid    int
	maxSlots int
	held     int32
}

func newSemGate(dir string, maxSlots int) (Gate, error) {
	if maxSlots <= 0 {
		maxSlots = 1
	}

	key := ftok(dir)

	// Race to create: the winner initializes the semaphore's value by
	// adding maxSlots in one semop, since a freshly created SysV
	// semaphore starts at zero. The loser just attaches to the
	// already-initialized semaphore by key.
	semid, err := unix.Semget(key, 1, unix.IPC_CREAT|unix.IPC_EXCL|0o644)
	if err == nil {
		initOp := []unix.Sembuf{{SemNum: 0, SemOp: int16(maxSlots), SemFlg: 0}}
		if err := unix.Semop(semid, initOp); err != nil {
			return nil, fmt.Errorf("pool: semop init: %w", err)
		}
	} else if errors.Is(err, unix.EEXIST) {
		semid, err = unix.Semget(key, 1, 0o644)
		if err != nil {
			return nil, fmt.Errorf("pool: semget attach: %w", err)
		}
	} else {
		return nil, fmt.Errorf("pool: semget: %w", err)
	}

	return &semGate{semid: semid, maxSlots: maxSlots}, nil
}

// ftok derives a SysV IPC key from a filesystem path. Unlike the libc
// ftok(3) function this doesn't require the path to exist, since the
// data directory may not be created yet the first time a gate is
// opened against it.
func ftok(path string) int {
	h := fnv.New32a()
	h.Write([]byte(path))
	return int(h.Sum32() & 0x7fffffff)
}

func (g *semGate) Acquire() (release func() error, err error) {
	op := []unix.Sembuf{{SemNum: 0, SemOp: -1, SemFlg: unix.IPC_NOWAIT}}
	if err := unix.Semop(g.semid, op); err != nil {
		return nil, fmt.Errorf("pool: all %d gate slots held", g.maxSlots)
	}
	atomic.AddInt32(&g.held, 1)

	var released int32
	return func() error {
		if !atomic.CompareAndSwapInt32(&released, 0, 1) {
			return nil
		}
		atomic.AddInt32(&g.held, -1)
		rel := []unix.Sembuf{{SemNum: 0, SemOp: 1, SemFlg: 0}}
		return unix.Semop(g.semid, rel)
	}, nil
}

func (g *semGate) Count() int {
	return int(atomic.LoadInt32(&g.held))
}
