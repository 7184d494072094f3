package facade

import (
	"fmt"

	"github.com/aleksaelezovic/trigo/internal/quadstore"
	"github.com/aleksaelezovic/trigo/internal/wal"
	"github.com/aleksaelezovic/trigo/pkg/rdf"
)

// Add writes a new fact valid over [validFrom, validTo) for quad,
// taking the write lock for the duration of the call.
func (s *Store) Add(owner any, quad *rdf.Quad, validFrom, validTo int64) error {
	if err := s.lock.acquireWrite(owner); err != nil {
		return err
	}
	defer s.lock.releaseWrite(owner)

	return s.addLocked(quad, validFrom, validTo, false)
}

// Delete writes a tombstone covering quad's current open interval.
// Deleting an already-deleted or nonexistent quad returns (false, nil),
// not an error, per spec §4.D.
func (s *Store) Delete(owner any, quad *rdf.Quad, validFrom int64) (bool, error) {
	if err := s.lock.acquireWrite(owner); err != nil {
		return false, err
	}
	defer s.lock.releaseWrite(owner)

	existed, err := s.quadHasOpenVersion(quad)
	if err != nil {
		return false, err
	}
	if !existed {
		return false, nil
	}
	if err := s.addLocked(quad, validFrom, quadstore.OpenFuture, true); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Store) quadHasOpenVersion(quad *rdf.Quad) (bool, error) {
	pat, ok, err := s.patternFromQuad(quad)
	if err != nil || !ok {
		return false, err
	}

	txn, err := s.storage.Begin(false)
	if err != nil {
		return false, err
	}
	defer txn.Rollback()

	it, err := quadstore.Scan(txn, pat)
	if err != nil {
		return false, err
	}
	defer it.Close()

	found := false
	for it.Next() {
		r := it.Record()
		if r.ValidTo == quadstore.OpenFuture && !r.Deleted {
			found = true
		}
	}
	return found, nil
}

func (s *Store) patternFromQuad(quad *rdf.Quad) (quadstore.Pattern, bool, error) {
	s_, found, err := s.resolveTerm(quad.Subject)
	if err != nil || !found {
		return quadstore.Pattern{}, false, err
	}
	p, found, err := s.resolveTerm(quad.Predicate)
	if err != nil || !found {
		return quadstore.Pattern{}, false, err
	}
	o, found, err := s.resolveTerm(quad.Object)
	if err != nil || !found {
		return quadstore.Pattern{}, false, err
	}
	g, found, err := s.resolveTerm(quad.Graph)
	if err != nil || !found {
		return quadstore.Pattern{}, false, err
	}
	return quadstore.Pattern{
		S: s_, SBound: true,
		P: p, PBound: true,
		O: o, OBound: true,
		G: g, GBound: true,
	}, true, nil
}

// addLocked performs the WAL-then-index write for a single quad
// mutation. Must be called with the write lock held.
func (s *Store) addLocked(quad *rdf.Quad, validFrom, validTo int64, deleted bool) error {
	sID, err := s.internTerm(quad.Subject)
	if err != nil {
		return err
	}
	pID, err := s.internTerm(quad.Predicate)
	if err != nil {
		return err
	}
	oID, err := s.internTerm(quad.Object)
	if err != nil {
		return err
	}
	gID, err := s.internTerm(quad.Graph)
	if err != nil {
		return err
	}

	rec := quadstore.Record{
		S: sID, P: pID, O: oID, G: gID,
		ValidFrom: validFrom, ValidTo: validTo,
		Deleted: deleted,
		Seq:     s.nextSeq(),
	}

	recType := wal.RecordQuadAdd
	if deleted {
		recType = wal.RecordQuadDelete
	}
	txID := s.walw.NextTxID()
	if err := s.walw.Append(wal.Record{Type: recType, TxID: txID, Payload: encodeQuadPayload(rec)}); err != nil {
		return fmt.Errorf("facade: journal quad write: %w", err)
	}

	txn, err := s.storage.Begin(true)
	if err != nil {
		return err
	}
	defer txn.Rollback()

	if err := quadstore.Put(txn, rec); err != nil {
		return err
	}
	if gID != 0 {
		if err := quadstore.RegisterGraph(txn, gID); err != nil {
			return err
		}
	}
	if err := txn.Commit(); err != nil {
		return err
	}

	s.writesSinceCkpt++
	s.maybeCheckpoint()
	return nil
}

// Batch accumulates mutations under a held write lock, appending a
// BATCH_BEGIN on creation and a BATCH_COMMIT or BATCH_ABORT when
// finished. Queued mutations are buffered in memory and applied to the
// index in one transaction at Commit, so concurrent readers see either
// the pre-batch state or the fully-applied post-batch state, never a
// partial batch (spec §4.L), and Abort is a pure no-op against the
// index.
type Batch struct {
	store   *Store
	owner   any
	txID    uint64
	done    bool
	pending []quadstore.Record
}

// BeginBatch takes the write lock and returns a Batch that holds it
// until Commit or Abort is called. Re-entrant BeginBatch from the same
// owner fails with a lock-recursion error rather than deadlocking.
func (s *Store) BeginBatch(owner any) (*Batch, error) {
	if err := s.lock.acquireWrite(owner); err != nil {
		return nil, err
	}

	txID := s.walw.NextTxID()
	if err := s.walw.Append(wal.Record{Type: wal.RecordBatchBegin, TxID: txID}); err != nil {
		s.lock.releaseWrite(owner)
		return nil, fmt.Errorf("facade: journal batch begin: %w", err)
	}

	return &Batch{store: s, owner: owner, txID: txID}, nil
}

// Add queues an add mutation, journaling it under the batch's txID.
func (b *Batch) Add(quad *rdf.Quad, validFrom, validTo int64) error {
	return b.queueMutation(quad, validFrom, validTo, false)
}

// Delete queues a delete mutation.
func (b *Batch) Delete(quad *rdf.Quad, validFrom int64) error {
	return b.queueMutation(quad, validFrom, quadstore.OpenFuture, true)
}

func (b *Batch) queueMutation(quad *rdf.Quad, validFrom, validTo int64, deleted bool) error {
	if b.done {
		return fmt.Errorf("facade: batch already committed or aborted")
	}
	s := b.store

	sID, err := s.internTerm(quad.Subject)
	if err != nil {
		return err
	}
	pID, err := s.internTerm(quad.Predicate)
	if err != nil {
		return err
	}
	oID, err := s.internTerm(quad.Object)
	if err != nil {
		return err
	}
	gID, err := s.internTerm(quad.Graph)
	if err != nil {
		return err
	}

	rec := quadstore.Record{
		S: sID, P: pID, O: oID, G: gID,
		ValidFrom: validFrom, ValidTo: validTo,
		Deleted: deleted,
		Seq:     s.nextSeq(),
	}

	recType := wal.RecordQuadAdd
	if deleted {
		recType = wal.RecordQuadDelete
	}
	if err := s.walw.Append(wal.Record{Type: recType, TxID: b.txID, Payload: encodeQuadPayload(rec)}); err != nil {
		return fmt.Errorf("facade: journal batched quad write: %w", err)
	}

	b.pending = append(b.pending, rec)
	return nil
}

// Exists reports whether quad currently has a live (non-tombstoned,
// open-ended) version, the same check Delete uses, so update-executor
// callers can decide whether a queued delete will actually affect
// anything before counting it. Safe to call mid-batch: it scans the
// storage engine directly rather than touching the store's
// reader-writer lock (already held for the batch's lifetime).
func (b *Batch) Exists(quad *rdf.Quad) (bool, error) {
	return b.store.quadHasOpenVersion(quad)
}

// Commit applies every queued mutation to the index in a single
// transaction, journals BATCH_COMMIT, and releases the write lock.
func (b *Batch) Commit() error {
	if b.done {
		return fmt.Errorf("facade: batch already committed or aborted")
	}
	b.done = true
	defer b.store.lock.releaseWrite(b.owner)

	s := b.store
	txn, err := s.storage.Begin(true)
	if err != nil {
		return err
	}
	defer txn.Rollback()

	for _, rec := range b.pending {
		if err := quadstore.Put(txn, rec); err != nil {
			return err
		}
		if rec.G != 0 {
			if err := quadstore.RegisterGraph(txn, rec.G); err != nil {
				return err
			}
		}
	}

	if err := s.walw.Append(wal.Record{Type: wal.RecordBatchCommit, TxID: b.txID}); err != nil {
		return fmt.Errorf("facade: journal batch commit: %w", err)
	}
	if err := txn.Commit(); err != nil {
		return err
	}
	s.writesSinceCkpt += int64(len(b.pending))
	s.maybeCheckpoint()
	return nil
}

// Abort journals BATCH_ABORT and releases the write lock. Because
// queued mutations were never applied to the index, there is nothing
// to roll back.
func (b *Batch) Abort() error {
	if b.done {
		return fmt.Errorf("facade: batch already committed or aborted")
	}
	b.done = true
	defer b.store.lock.releaseWrite(b.owner)

	return b.store.walw.Append(wal.Record{Type: wal.RecordBatchAbort, TxID: b.txID})
}
