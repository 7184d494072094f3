// Package checkpoint tracks how far the write-ahead log has been
// durably reflected into the badger-backed indexes, and when that
// marker can be advanced and the log truncated.
package checkpoint

import (
	"encoding/binary"
	"fmt"
	"os"
)

// Manager persists the highest WAL transaction id known to be applied
// to the index, in a small fixed-format file separate from the log
// itself so a checkpoint write and a WAL append never race on the same
// file descriptor.
type Manager struct {
	path           string
	lastTxID       uint64
	interval       int64
	walThreshold   int64
	sinceLastCheck int64
}

// NewManager opens (or creates) the checkpoint marker file at path.
func NewManager(path string, interval, walThreshold int64) (*Manager, error) {
	m := &Manager{path: path, interval: interval, walThreshold: walThreshold}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return m, nil
		}
		return nil, fmt.Errorf("checkpoint: read %s: %w", path, err)
	}
	if len(data) < 8 {
		return nil, fmt.Errorf("checkpoint: truncated marker file %s", path)
	}
	m.lastTxID = binary.BigEndian.Uint64(data[:8])
	return m, nil
}

// LastTxID returns the highest WAL transaction id reflected in the
// index as of the last checkpoint.
func (m *Manager) LastTxID() uint64 { return m.lastTxID }

// Record advances the checkpoint marker to txID and fsyncs it.
func (m *Manager) Record(txID uint64) error {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, txID)

	f, err := os.OpenFile(m.path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("checkpoint: open %s: %w", m.path, err)
	}
	defer f.Close()

	if _, err := f.Write(buf); err != nil {
		return fmt.Errorf("checkpoint: write: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("checkpoint: fsync: %w", err)
	}
	m.lastTxID = txID
	m.sinceLastCheck = 0
	return nil
}

// ShouldCheckpoint reports whether enough writes have accumulated
// since the last checkpoint (by count, or by observed WAL byte growth)
// to justify taking another one.
func (m *Manager) ShouldCheckpoint(writesSinceLast int64, walSizeBytes int64) bool {
	if m.interval > 0 && writesSinceLast >= m.interval {
		return true
	}
	if m.walThreshold > 0 && walSizeBytes >= m.walThreshold {
		return true
	}
	return false
}
