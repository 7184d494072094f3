package checkpoint

import (
	"path/filepath"
	"testing"
)

func TestNewManagerWithNoExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint")
	m, err := NewManager(path, 100, 0)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if got := m.LastTxID(); got != 0 {
		t.Errorf("LastTxID = %d, want 0", got)
	}
}

func TestRecordPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoint")
	m, err := NewManager(path, 100, 0)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}
	if err := m.Record(42); err != nil {
		t.Fatalf("Record: %v", err)
	}

	m2, err := NewManager(path, 100, 0)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if got := m2.LastTxID(); got != 42 {
		t.Errorf("LastTxID after reopen = %d, want 42", got)
	}
}

func TestShouldCheckpointByCount(t *testing.T) {
	m := &Manager{interval: 10}
	if m.ShouldCheckpoint(9, 0) {
		t.Error("expected no checkpoint before reaching interval")
	}
	if !m.ShouldCheckpoint(10, 0) {
		t.Error("expected checkpoint at interval")
	}
}

func TestShouldCheckpointByWALSize(t *testing.T) {
	m := &Manager{walThreshold: 1024}
	if m.ShouldCheckpoint(0, 1023) {
		t.Error("expected no checkpoint below threshold")
	}
	if !m.ShouldCheckpoint(0, 1024) {
		t.Error("expected checkpoint at threshold")
	}
}
