// Package wal implements the write-ahead log that sits in front of the
// badger-backed quadstore indexes. Every mutation is framed, checksummed,
// and fsynced here before it is applied to the index; on restart the
// log is replayed from the last checkpoint to recover any writes that
// committed to the log but not yet to the index.
package wal

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"sync"

	"github.com/zeebo/xxh3"
)

// castagnoliTable is the CRC32C polynomial table used for every frame
// checksum in this file.
var castagnoliTable = crc32.MakeTable(crc32.Castagnoli)

// RecordType distinguishes the kinds of entries appended to the log.
type RecordType byte

const (
	RecordAtomIntern RecordType = iota + 1
	RecordQuadAdd
	RecordQuadDelete
	RecordBatchBegin
	RecordBatchCommit
	RecordBatchAbort
	RecordCheckpoint
)

func (t RecordType) String() string {
	switch t {
	case RecordAtomIntern:
		return "atom-intern"
	case RecordQuadAdd:
		return "quad-add"
	case RecordQuadDelete:
		return "quad-delete"
	case RecordBatchBegin:
		return "batch-begin"
	case RecordBatchCommit:
		return "batch-commit"
	case RecordBatchAbort:
		return "batch-abort"
	case RecordCheckpoint:
		return "checkpoint"
	default:
		return "unknown"
	}
}

// Record is one framed entry: a type tag, the txn id it belongs to, and
// an opaque payload whose shape depends on Type.
type Record struct {
	Type    RecordType
	TxID    uint64
	Payload []byte
}

// frame layout:
//
//	len(uint32) | type(1) | txid(uint64) | payload | crc32c(uint32) | xxh3(uint64)
//
// crc32c is the primary checksum spec'd for the log (CRC32C, the
// Castagnoli polynomial); xxh3 is a cheap secondary sum over the same
// bytes, catching the vanishingly rare CRC32C collision a torn or
// bit-flipped frame could otherwise pass.
const frameHeaderLen = 4 + 1 + 8
const frameTrailerLen = 4 + 8

// WAL is an append-only log of Records, fsynced on every durable
// boundary (single-record writes, batch commits, and checkpoints).
type WAL struct {
	mu     sync.Mutex
	file   *os.File
	writer *bufio.Writer
	nextID uint64
}

// Open opens (creating if absent) the log file at path and positions
// nextID past the highest TxID found by a full forward scan.
func Open(path string) (*WAL, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("wal: open %s: %w", path, err)
	}

	w := &WAL{file: f}
	maxID, err := w.scanMaxTxID()
	if err != nil {
		f.Close()
		return nil, err
	}
	w.nextID = maxID + 1
	w.writer = bufio.NewWriter(f)
	return w, nil
}

func (w *WAL) scanMaxTxID() (uint64, error) {
	var maxID uint64
	err := Replay(w.file, func(r Record) error {
		if r.TxID > maxID {
			maxID = r.TxID
		}
		return nil
	})
	if _, serr := w.file.Seek(0, io.SeekEnd); serr != nil {
		return 0, serr
	}
	return maxID, err
}

// NextTxID allocates and returns the next monotonic transaction id.
func (w *WAL) NextTxID() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	id := w.nextID
	w.nextID++
	return id
}

// LastIssuedTxID reports the highest TxID handed out by NextTxID so
// far, without allocating a new one. Used by checkpointing and stats
// reporting, which need to know "how far has the log grown" rather
// than "give me a fresh slot".
func (w *WAL) LastIssuedTxID() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.nextID == 0 {
		return 0
	}
	return w.nextID - 1
}

// Append frames rec and fsyncs it before returning, so a crash
// immediately after Append guarantees rec is recoverable.
func (w *WAL) Append(rec Record) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	frame := encodeFrame(rec)
	if _, err := w.writer.Write(frame); err != nil {
		return fmt.Errorf("wal: write frame: %w", err)
	}
	if err := w.writer.Flush(); err != nil {
		return fmt.Errorf("wal: flush: %w", err)
	}
	if err := w.file.Sync(); err != nil {
		return fmt.Errorf("wal: fsync: %w", err)
	}
	return nil
}

// Truncate discards the log tail up to and including upToTxID,
// called after a checkpoint has durably reflected every record at or
// below upToTxID into the index.
func (w *WAL) Truncate(upToTxID uint64) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	path := w.file.Name()
	tmpPath := path + ".compact"
	tmp, err := os.OpenFile(tmpPath, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("wal: create compaction file: %w", err)
	}

	if _, err := w.file.Seek(0, io.SeekStart); err != nil {
		tmp.Close()
		return err
	}

	err = Replay(w.file, func(r Record) error {
		if r.TxID <= upToTxID {
			return nil
		}
		_, werr := tmp.Write(encodeFrame(r))
		return werr
	})
	if err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("wal: rewrite during truncate: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	tmp.Close()

	if err := w.file.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("wal: rename compacted log: %w", err)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	w.file = f
	w.writer = bufio.NewWriter(f)
	return nil
}

// Close flushes and closes the underlying log file.
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.writer.Flush(); err != nil {
		return err
	}
	return w.file.Close()
}

func encodeFrame(rec Record) []byte {
	body := make([]byte, frameHeaderLen+len(rec.Payload))
	body[4] = byte(rec.Type)
	binary.BigEndian.PutUint64(body[5:13], rec.TxID)
	copy(body[frameHeaderLen:], rec.Payload)
	binary.BigEndian.PutUint32(body[0:4], uint32(len(rec.Payload)))

	sum := crc32.Checksum(body, castagnoliTable)
	secondary := xxh3.Hash(body)
	frame := make([]byte, len(body)+frameTrailerLen)
	copy(frame, body)
	binary.BigEndian.PutUint32(frame[len(body):], sum)
	binary.BigEndian.PutUint64(frame[len(body)+4:], secondary)
	return frame
}

// Replay reads every well-formed frame from r in order, calling fn for
// each. A frame that is truncated (a partial write torn by a crash) or
// fails its checksum ends replay at that point without error, treating
// the tear as the logical end of the log rather than corruption.
func Replay(r io.ReadSeeker, fn func(Record) error) error {
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return err
	}
	br := bufio.NewReader(r)

	for {
		header := make([]byte, frameHeaderLen)
		if _, err := io.ReadFull(br, header); err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return nil
			}
			return fmt.Errorf("wal: read frame header: %w", err)
		}

		payloadLen := binary.BigEndian.Uint32(header[0:4])
		rest := make([]byte, int(payloadLen)+frameTrailerLen)
		if _, err := io.ReadFull(br, rest); err != nil {
			// torn final frame: stop, don't fail recovery.
			return nil
		}

		payload := rest[:payloadLen]
		wantSum := binary.BigEndian.Uint32(rest[payloadLen : payloadLen+4])
		wantSecondary := binary.BigEndian.Uint64(rest[payloadLen+4:])

		body := append(append([]byte{}, header...), payload...)
		if crc32.Checksum(body, castagnoliTable) != wantSum {
			return nil
		}
		if xxh3.Hash(body) != wantSecondary {
			return nil
		}

		rec := Record{
			Type:    RecordType(header[4]),
			TxID:    binary.BigEndian.Uint64(header[5:13]),
			Payload: payload,
		}
		if err := fn(rec); err != nil {
			return err
		}
	}
}
