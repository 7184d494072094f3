package facade

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/aleksaelezovic/trigo/internal/quadstore"
	"github.com/aleksaelezovic/trigo/internal/wal"
)

// recover implements spec §4.E's recovery protocol: load the last
// checkpoint's atom snapshot, then replay the WAL tail beyond it,
// dropping any batch whose BATCH_COMMIT is missing.
//
// Index state itself does not need rebuilding from scratch: quad index
// writes are committed to BadgerDB, which is already durable by the
// time a writer's Append+Commit pair returns. Replay exists to (a)
// restore the purely in-memory atom
// table, and (b) re-apply any QUAD_ADD/QUAD_DELETE whose WAL append
// completed but whose BadgerDB commit did not, which is safe because
// index writes are idempotent (keyed by content, not by retry count).
func (s *Store) recover() error {
	snapshotPath := filepath.Join(s.cfg.DataDir, "atoms.snapshot")
	if f, err := os.Open(snapshotPath); err == nil {
		err2 := s.atoms.Load(f)
		f.Close()
		if err2 != nil {
			return fmt.Errorf("load atom snapshot: %w", err2)
		}
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("open atom snapshot: %w", err)
	}

	lastCkpt := s.ckpt.LastTxID()

	openBatches := make(map[uint64]bool)
	pendingInBatch := make(map[uint64][]wal.Record)

	apply := func(rec wal.Record) error {
		switch rec.Type {
		case wal.RecordBatchBegin:
			openBatches[rec.TxID] = true

		case wal.RecordBatchAbort:
			delete(openBatches, rec.TxID)
			delete(pendingInBatch, rec.TxID)

		case wal.RecordBatchCommit:
			for _, buffered := range pendingInBatch[rec.TxID] {
				if err := s.applyRecoveredRecord(buffered); err != nil {
					return err
				}
			}
			delete(openBatches, rec.TxID)
			delete(pendingInBatch, rec.TxID)

		case wal.RecordAtomIntern:
			id, bytes := decodeAtomIntern(rec.Payload)
			if err := s.atoms.InternAt(id, bytes); err != nil {
				return fmt.Errorf("replay atom intern: %w", err)
			}

		case wal.RecordQuadAdd, wal.RecordQuadDelete:
			// Belongs to an in-flight batch if one is open for this txid's
			// batch owner; standalone single-record commits have no
			// enclosing BATCH_BEGIN and apply immediately.
			if inBatch, ok := batchOwnerOf(rec, openBatches); ok {
				pendingInBatch[inBatch] = append(pendingInBatch[inBatch], rec)
			} else {
				return s.applyRecoveredRecord(rec)
			}

		case wal.RecordCheckpoint:
			// already accounted for via lastCkpt; nothing further to do.
		}
		return nil
	}

	f, err := os.Open(filepath.Join(s.cfg.DataDir, "wal.log"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open wal for replay: %w", err)
	}
	defer f.Close()

	err = wal.Replay(f, func(rec wal.Record) error {
		if rec.TxID <= lastCkpt {
			return nil
		}
		return apply(rec)
	})
	if err != nil {
		return fmt.Errorf("replay wal: %w", err)
	}

	// Resume Seq above every record already indexed, so a record written
	// after this open never reuses an earlier record's Seq.
	txn, err := s.storage.Begin(false)
	if err != nil {
		return err
	}
	defer txn.Rollback()
	it, err := quadstore.Scan(txn, quadstore.Pattern{})
	if err != nil {
		return err
	}
	defer it.Close()
	for it.Next() {
		s.seq = max(s.seq, it.Record().Seq)
	}
	return nil
}

// batchOwnerOf reports whether rec's TxID matches a currently open
// batch. The trigo WAL assigns one txid per logical operation, so a
// batched QUAD_ADD/QUAD_DELETE carries the txid of its enclosing
// BATCH_BEGIN, set by Batch.Add/Batch.Delete.
func batchOwnerOf(rec wal.Record, open map[uint64]bool) (uint64, bool) {
	if open[rec.TxID] {
		return rec.TxID, true
	}
	return 0, false
}

func (s *Store) applyRecoveredRecord(rec wal.Record) error {
	r := decodeQuadPayload(rec.Payload)

	txn, err := s.storage.Begin(true)
	if err != nil {
		return err
	}
	defer txn.Rollback()

	if err := quadstore.Put(txn, r); err != nil {
		return err
	}
	if r.G != 0 {
		if err := quadstore.RegisterGraph(txn, r.G); err != nil {
			return err
		}
	}
	return txn.Commit()
}
