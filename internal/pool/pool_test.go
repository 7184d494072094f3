package pool

import (
	"context"
	"path/filepath"
	"testing"
)

func TestPoolBoundsConcurrentAcquires(t *testing.T) {
	p := New(2)
	ctx := context.Background()

	if err := p.Acquire(ctx); err != nil {
		t.Fatalf("Acquire 1: %v", err)
	}
	if err := p.Acquire(ctx); err != nil {
		t.Fatalf("Acquire 2: %v", err)
	}
	if p.TryAcquire() {
		t.Fatal("expected TryAcquire to fail once max handles are held")
	}

	p.Release()
	if !p.TryAcquire() {
		t.Fatal("expected TryAcquire to succeed after a Release")
	}
}

func TestGateAcquireAndRelease(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "gate")
	g, err := NewGate(dir, 2)
	if err != nil {
		t.Fatalf("NewGate: %v", err)
	}

	release1, err := g.Acquire()
	if err != nil {
		t.Fatalf("Acquire 1: %v", err)
	}
	release2, err := g.Acquire()
	if err != nil {
		t.Fatalf("Acquire 2: %v", err)
	}
	if g.Count() != 2 {
		t.Errorf("Count = %d, want 2", g.Count())
	}

	if _, err := g.Acquire(); err == nil {
		t.Fatal("expected error acquiring a third slot over a 2-slot gate")
	}

	if err := release1(); err != nil {
		t.Fatalf("release1: %v", err)
	}
	if err := release2(); err != nil {
		t.Fatalf("release2: %v", err)
	}
}
