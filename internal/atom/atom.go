// Package atom implements the atom store (spec §4.A): a bijection
// between 32-bit ids and the exact byte-for-byte lexical form of an RDF
// term. Ids are never recycled within a store's lifetime; id 0 is
// reserved to mean "unbound / wildcard".
//
// Thread-safety is not provided internally — per spec §4.A the caller
// (the quad-store façade) supplies exclusion via its write lock.
package atom

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/zeebo/xxh3"
)

// Unbound is the reserved id meaning "unbound / wildcard".
const Unbound uint32 = 0

// Store interns term byte strings to dense, sequential 32-bit ids.
type Store struct {
	byID   [][]byte
	byHash map[[16]byte][]uint32
}

// New returns an empty atom store. Id 0 is pre-reserved for Unbound, so
// the first interned term receives id 1.
func New() *Store {
	return &Store{
		byID:   make([][]byte, 1, 1024), // index 0 reserved
		byHash: make(map[[16]byte][]uint32, 1024),
	}
}

func hashOf(b []byte) [16]byte {
	h := xxh3.Hash128(b)
	var out [16]byte
	binary.BigEndian.PutUint64(out[0:8], h.Hi)
	binary.BigEndian.PutUint64(out[8:16], h.Lo)
	return out
}

// Intern returns the existing id for bytes, or allocates and returns a
// new one. The returned id is stable for the lifetime of the store.
func (s *Store) Intern(bytes []byte) uint32 {
	h := hashOf(bytes)
	for _, candidate := range s.byHash[h] {
		if string(s.byID[candidate]) == string(bytes) {
			return candidate
		}
	}
	return s.allocate(h, bytes)
}

// LookupBytes reports the id already assigned to bytes, without
// interning it. Used by read paths (query patterns) where a term with
// no existing atom simply cannot match anything.
func (s *Store) LookupBytes(bytes []byte) (uint32, bool) {
	h := hashOf(bytes)
	for _, candidate := range s.byHash[h] {
		if string(s.byID[candidate]) == string(bytes) {
			return candidate, true
		}
	}
	return 0, false
}

// InternAt is used during WAL/checkpoint replay to re-create a
// previously-assigned id exactly, preserving the bijection across
// recovery. It is a no-op if id is already populated with the same
// bytes, and an error if id is already populated with different bytes
// (which would indicate a corrupt log).
func (s *Store) InternAt(id uint32, bytes []byte) error {
	if id == Unbound {
		return fmt.Errorf("atom: cannot assign reserved id 0")
	}
	if int(id) < len(s.byID) && s.byID[id] != nil {
		if string(s.byID[id]) != string(bytes) {
			return fmt.Errorf("atom: id %d already bound to a different term", id)
		}
		return nil
	}
	for int(id) >= len(s.byID) {
		s.byID = append(s.byID, nil)
	}
	buf := append([]byte(nil), bytes...)
	s.byID[id] = buf
	h := hashOf(buf)
	s.byHash[h] = append(s.byHash[h], id)
	return nil
}

func (s *Store) allocate(h [16]byte, bytes []byte) uint32 {
	id := uint32(len(s.byID))
	buf := append([]byte(nil), bytes...)
	s.byID = append(s.byID, buf)
	s.byHash[h] = append(s.byHash[h], id)
	return id
}

// Resolve returns the borrowed byte slice for id. It panics on an id
// out of range, per spec §4.A ("programmer error").
func (s *Store) Resolve(id uint32) []byte {
	if id == Unbound || int(id) >= len(s.byID) || s.byID[id] == nil {
		panic(fmt.Sprintf("atom: id %d out of range", id))
	}
	return s.byID[id]
}

// Lookup is the non-panicking form of Resolve: it reports false for an
// id that is reserved, out of range, or not populated.
func (s *Store) Lookup(id uint32) ([]byte, bool) {
	if id == Unbound || int(id) >= len(s.byID) || s.byID[id] == nil {
		return nil, false
	}
	return s.byID[id], true
}

// Len returns the number of live atoms (excluding the reserved id 0).
func (s *Store) Len() int { return len(s.byID) - 1 }

// NextID reports the id that would be assigned to the next newly
// interned term.
func (s *Store) NextID() uint32 { return uint32(len(s.byID)) }

// Snapshot writes every live atom as a checkpoint image fragment:
// a uint32 count, followed by each atom as id-ascending (length-prefixed
// bytes). Only called under the façade's write lock (checkpoints are
// taken synchronously with respect to mutation).
func (s *Store) Snapshot(w io.Writer) error {
	bw := bufio.NewWriter(w)
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(s.byID)-1))
	if _, err := bw.Write(hdr[:]); err != nil {
		return err
	}
	var lenBuf [4]byte
	for id := 1; id < len(s.byID); id++ {
		term := s.byID[id]
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(term)))
		if _, err := bw.Write(lenBuf[:]); err != nil {
			return err
		}
		if _, err := bw.Write(term); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// Load replaces the store's contents with the atoms serialized by
// Snapshot, re-creating ids exactly as assigned originally.
func (s *Store) Load(r io.Reader) error {
	br := bufio.NewReader(r)
	var hdr [4]byte
	if _, err := io.ReadFull(br, hdr[:]); err != nil {
		return fmt.Errorf("atom: read snapshot header: %w", err)
	}
	count := binary.BigEndian.Uint32(hdr[:])

	s.byID = make([][]byte, 1, count+1)
	s.byHash = make(map[[16]byte][]uint32, count)

	var lenBuf [4]byte
	for i := uint32(0); i < count; i++ {
		if _, err := io.ReadFull(br, lenBuf[:]); err != nil {
			return fmt.Errorf("atom: read term length: %w", err)
		}
		n := binary.BigEndian.Uint32(lenBuf[:])
		buf := make([]byte, n)
		if _, err := io.ReadFull(br, buf); err != nil {
			return fmt.Errorf("atom: read term bytes: %w", err)
		}
		id := uint32(len(s.byID))
		s.byID = append(s.byID, buf)
		h := hashOf(buf)
		s.byHash[h] = append(s.byHash[h], id)
	}
	return nil
}
