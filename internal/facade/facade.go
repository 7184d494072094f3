// Package facade implements the quad-store façade (spec component F):
// the transactional API that owns the atom store, the four indexes,
// the WAL writer, and the reader-writer lock, and that recovers state
// at open time from the last checkpoint plus the WAL tail.
package facade

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/aleksaelezovic/trigo/internal/atom"
	"github.com/aleksaelezovic/trigo/internal/checkpoint"
	"github.com/aleksaelezovic/trigo/internal/config"
	"github.com/aleksaelezovic/trigo/internal/errs"
	"github.com/aleksaelezovic/trigo/internal/logging"
	"github.com/aleksaelezovic/trigo/internal/pool"
	"github.com/aleksaelezovic/trigo/internal/quadstore"
	"github.com/aleksaelezovic/trigo/internal/termcodec"
	"github.com/aleksaelezovic/trigo/internal/wal"
	"github.com/aleksaelezovic/trigo/pkg/rdf"
)

// handlePools tracks one Pool per data directory shared by every Store
// opened against it within this process, so PoolMaxHandles bounds
// concurrent handles per dataset rather than per call to Open.
var (
	handlePoolsMu sync.Mutex
	handlePools   = map[string]*pool.Pool{}
)

func handlePoolFor(dataDir string, maxHandles int) *pool.Pool {
	handlePoolsMu.Lock()
	defer handlePoolsMu.Unlock()
	p, ok := handlePools[dataDir]
	if !ok {
		p = pool.New(maxHandles)
		handlePools[dataDir] = p
	}
	return p
}

// acquireGate retries g.Acquire, which does not itself block, until it
// succeeds or timeout elapses. timeout <= 0 means try exactly once.
func acquireGate(g pool.Gate, timeout time.Duration) (release func() error, err error) {
	release, err = g.Acquire()
	if err == nil || timeout <= 0 {
		return release, err
	}

	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
		if release, err = g.Acquire(); err == nil {
			return release, nil
		}
	}
	return nil, err
}

// Store is the durable, concurrency-controlled temporal quad store.
type Store struct {
	cfg     config.Config
	log     logging.Logger
	atoms   *atom.Store
	storage *quadstore.BadgerStorage
	walw    *wal.WAL
	walPath string
	ckpt    *checkpoint.Manager
	lock    *rwLock

	handlePool  *pool.Pool
	gateRelease func() error

	seq             uint64 // last Record.Seq issued; recover resumes it above every indexed record
	writesSinceCkpt int64
}

// Open recovers and returns a Store rooted at cfg.DataDir: it loads the
// last checkpoint (if any), opens the WAL, and replays any WAL records
// committed after that checkpoint back into the indexes.
func Open(cfg config.Config, log logging.Logger) (*Store, error) {
	if log == nil {
		log = logging.Default()
	}

	absDir, err := filepath.Abs(cfg.DataDir)
	if err != nil {
		absDir = cfg.DataDir
	}

	// Component G (spec §4.G): bound concurrently open handles to this
	// dataset within the process (handlePool) and across every process
	// that points at it (the gate), before touching any on-disk state.
	var handlePool *pool.Pool
	if cfg.PoolMaxHandles > 0 {
		handlePool = handlePoolFor(absDir, cfg.PoolMaxHandles)
		ctx := context.Background()
		if cfg.GateTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, cfg.GateTimeout)
			defer cancel()
		}
		if err := handlePool.Acquire(ctx); err != nil {
			return nil, fmt.Errorf("facade: acquire handle slot: %w", err)
		}
	}

	var gateRelease func() error
	if cfg.GateMaxSlots > 0 {
		gate, err := pool.NewGate(filepath.Join(cfg.DataDir, "gate"), cfg.GateMaxSlots)
		if err != nil {
			if handlePool != nil {
				handlePool.Release()
			}
			return nil, fmt.Errorf("facade: open gate: %w", err)
		}
		release, err := acquireGate(gate, cfg.GateTimeout)
		if err != nil {
			if handlePool != nil {
				handlePool.Release()
			}
			return nil, fmt.Errorf("facade: acquire gate slot: %w", err)
		}
		gateRelease = release
	}

	storage, err := quadstore.NewBadgerStorage(filepath.Join(cfg.DataDir, "index"))
	if err != nil {
		releasePoolAndGate(handlePool, gateRelease)
		return nil, fmt.Errorf("facade: open index storage: %w", err)
	}

	ckpt, err := checkpoint.NewManager(filepath.Join(cfg.DataDir, "checkpoint"), cfg.CheckpointWriteInterval, cfg.CheckpointWALThreshold)
	if err != nil {
		storage.Close()
		releasePoolAndGate(handlePool, gateRelease)
		return nil, fmt.Errorf("facade: open checkpoint manager: %w", err)
	}

	walPath := filepath.Join(cfg.DataDir, "wal.log")
	w, err := wal.Open(walPath)
	if err != nil {
		storage.Close()
		releasePoolAndGate(handlePool, gateRelease)
		return nil, fmt.Errorf("facade: open wal: %w", err)
	}

	s := &Store{
		cfg:         cfg,
		log:         log,
		atoms:       atom.New(),
		storage:     storage,
		walw:        w,
		walPath:     walPath,
		ckpt:        ckpt,
		lock:        newRWLock(),
		handlePool:  handlePool,
		gateRelease: gateRelease,
	}

	if err := s.recover(); err != nil {
		w.Close()
		storage.Close()
		releasePoolAndGate(handlePool, gateRelease)
		return nil, fmt.Errorf("facade: recovery: %w", err)
	}

	return s, nil
}

func releasePoolAndGate(handlePool *pool.Pool, gateRelease func() error) {
	if gateRelease != nil {
		gateRelease()
	}
	if handlePool != nil {
		handlePool.Release()
	}
}

// Close flushes and releases all resources, including this Store's
// pool and gate slots. Close does not take the write lock: callers are
// responsible for ensuring no other flow is mid-operation.
func (s *Store) Close() error {
	err := s.walw.Close()
	if closeErr := s.storage.Close(); err == nil {
		err = closeErr
	}
	releasePoolAndGate(s.handlePool, s.gateRelease)
	return err
}

// Stats reports the durability watermarks described in spec §4.E.
type Stats struct {
	CurrentTxID      uint64
	LastCheckpointID uint64
	WALSize          int64
}

func (s *Store) Stats() Stats {
	stats := Stats{
		CurrentTxID:      s.walw.LastIssuedTxID(),
		LastCheckpointID: s.ckpt.LastTxID(),
	}
	if info, err := os.Stat(s.walPath); err == nil {
		stats.WALSize = info.Size()
	}
	return stats
}

func (s *Store) nextSeq() uint64 {
	return atomic.AddUint64(&s.seq, 1)
}

// Checkpoint takes the write lock and forces a checkpoint regardless of
// the configured write/WAL-size thresholds.
func (s *Store) Checkpoint(owner any) error {
	if err := s.lock.acquireWrite(owner); err != nil {
		return err
	}
	defer s.lock.releaseWrite(owner)
	return s.checkpointLocked()
}

// checkpointLocked snapshots the atom table, advances the checkpoint
// marker to the highest txid issued so far, and truncates the WAL
// prefix the marker now covers. Must be called with the write lock
// held.
func (s *Store) checkpointLocked() error {
	snapshotPath := filepath.Join(s.cfg.DataDir, "atoms.snapshot")
	tmpPath := snapshotPath + ".tmp"

	f, err := os.OpenFile(tmpPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("facade: create atom snapshot: %w", err)
	}
	if err := s.atoms.Snapshot(f); err != nil {
		f.Close()
		return fmt.Errorf("facade: write atom snapshot: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("facade: fsync atom snapshot: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("facade: close atom snapshot: %w", err)
	}
	if err := os.Rename(tmpPath, snapshotPath); err != nil {
		return fmt.Errorf("facade: install atom snapshot: %w", err)
	}

	txID := s.walw.LastIssuedTxID()
	if err := s.ckpt.Record(txID); err != nil {
		return fmt.Errorf("facade: record checkpoint: %w", err)
	}
	if err := s.walw.Truncate(txID); err != nil {
		return fmt.Errorf("facade: truncate wal: %w", err)
	}
	s.writesSinceCkpt = 0
	return nil
}

// maybeCheckpoint runs checkpointLocked if the configured write-count
// or WAL-size thresholds have been crossed. Failures are logged, not
// propagated: a missed checkpoint only delays log compaction, it never
// loses data (recovery replays the WAL tail regardless).
func (s *Store) maybeCheckpoint() {
	walSize := int64(0)
	if info, err := os.Stat(s.walPath); err == nil {
		walSize = info.Size()
	}
	if !s.ckpt.ShouldCheckpoint(s.writesSinceCkpt, walSize) {
		return
	}
	if err := s.checkpointLocked(); err != nil {
		s.log.Printf("checkpoint failed: %v", err)
	}
}

// internTerm resolves term to an atom id, interning it (and journaling
// the intern) if it is new. Must be called with the write lock held.
func (s *Store) internTerm(term rdf.Term) (uint32, error) {
	if _, ok := term.(*rdf.DefaultGraph); ok {
		return atom.Unbound, nil
	}
	b, err := termcodec.Encode(term)
	if err != nil {
		return 0, err
	}
	if id, ok := s.atoms.LookupBytes(b); ok {
		return id, nil
	}

	id := s.atoms.Intern(b)
	if err := s.walw.Append(wal.Record{
		Type:    wal.RecordAtomIntern,
		TxID:    s.walw.NextTxID(),
		Payload: encodeAtomIntern(id, b),
	}); err != nil {
		return 0, fmt.Errorf("facade: journal atom intern: %w", err)
	}
	return id, nil
}

// resolveTerm looks up term without interning it. Used by read paths
// (query patterns) where an unknown term simply matches nothing.
func (s *Store) resolveTerm(term rdf.Term) (id uint32, found bool, err error) {
	if _, ok := term.(*rdf.DefaultGraph); ok {
		return atom.Unbound, true, nil
	}
	b, err := termcodec.Encode(term)
	if err != nil {
		return 0, false, err
	}
	id, found = s.atoms.LookupBytes(b)
	return id, found, nil
}

func encodeAtomIntern(id uint32, bytes []byte) []byte {
	buf := make([]byte, 4+len(bytes))
	buf[0] = byte(id >> 24)
	buf[1] = byte(id >> 16)
	buf[2] = byte(id >> 8)
	buf[3] = byte(id)
	copy(buf[4:], bytes)
	return buf
}

func decodeAtomIntern(payload []byte) (id uint32, bytes []byte) {
	id = uint32(payload[0])<<24 | uint32(payload[1])<<16 | uint32(payload[2])<<8 | uint32(payload[3])
	return id, payload[4:]
}

// lockRecursionErr reports whether err is the "lock recursion" kind,
// for callers that want to distinguish it from other failures.
func lockRecursionErr(err error) bool {
	return errors.Is(err, errs.ErrConcurrency)
}
