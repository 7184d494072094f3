package atom

import (
	"bytes"
	"testing"
)

func TestInternReturnsStableID(t *testing.T) {
	s := New()
	id1 := s.Intern([]byte("http://example.org/alice"))
	id2 := s.Intern([]byte("http://example.org/alice"))
	if id1 != id2 {
		t.Fatalf("expected repeated intern to return the same id, got %d and %d", id1, id2)
	}
	if id1 == Unbound {
		t.Fatalf("expected a non-zero id, atom store reserves 0 for Unbound")
	}
}

func TestInternDistinctBytesGetDistinctIDs(t *testing.T) {
	s := New()
	a := s.Intern([]byte("a"))
	b := s.Intern([]byte("b"))
	if a == b {
		t.Fatalf("expected distinct byte strings to get distinct ids")
	}
}

func TestResolveRoundTrips(t *testing.T) {
	s := New()
	id := s.Intern([]byte("hello world"))
	got := s.Resolve(id)
	if string(got) != "hello world" {
		t.Fatalf("Resolve(%d) = %q, want %q", id, got, "hello world")
	}
}

func TestResolvePanicsOutOfRange(t *testing.T) {
	s := New()
	defer func() {
		if recover() == nil {
			t.Fatal("expected Resolve to panic on an out-of-range id")
		}
	}()
	s.Resolve(999)
}

func TestLookupDoesNotPanic(t *testing.T) {
	s := New()
	if _, ok := s.Lookup(42); ok {
		t.Fatal("expected Lookup to report false for an unknown id")
	}
}

func TestSnapshotRoundTrip(t *testing.T) {
	s := New()
	ids := make([]uint32, 0, 5)
	for _, term := range []string{"one", "two", "three", "four", "five"} {
		ids = append(ids, s.Intern([]byte(term)))
	}

	var buf bytes.Buffer
	if err := s.Snapshot(&buf); err != nil {
		t.Fatalf("Snapshot: %v", err)
	}

	restored := New()
	if err := restored.Load(&buf); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if restored.Len() != s.Len() {
		t.Fatalf("restored Len() = %d, want %d", restored.Len(), s.Len())
	}
	for i, term := range []string{"one", "two", "three", "four", "five"} {
		got := restored.Resolve(ids[i])
		if string(got) != term {
			t.Errorf("restored atom %d = %q, want %q", ids[i], got, term)
		}
	}
}

func TestInternAtPreservesExactID(t *testing.T) {
	s := New()
	if err := s.InternAt(5, []byte("skip-ahead")); err != nil {
		t.Fatalf("InternAt: %v", err)
	}
	if got := s.Resolve(5); string(got) != "skip-ahead" {
		t.Fatalf("Resolve(5) = %q, want %q", got, "skip-ahead")
	}
	if err := s.InternAt(5, []byte("skip-ahead")); err != nil {
		t.Fatalf("repeated InternAt with identical bytes should be idempotent: %v", err)
	}
	if err := s.InternAt(5, []byte("different")); err == nil {
		t.Fatal("expected InternAt to reject reassigning an id to different bytes")
	}
}
