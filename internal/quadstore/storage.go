// Package quadstore implements the temporal quad record format and the
// four-index multi-index set (spec §4.B-§4.D): SPOT, POS, OSP, and
// GSPO, each an ordered map over atom ids plus a validFrom tick.
//
// The ordered-map abstraction (Storage/Transaction/Iterator/Table) is
// adapted from the teacher's pkg/store/storage.go seam so any ordered
// KV engine can back it; internal/quadstore/badger.go supplies the
// concrete BadgerDB implementation used by the façade.
package quadstore

import "errors"

// ErrNotFound is returned by Transaction.Get when key does not exist.
var ErrNotFound = errors.New("quadstore: key not found")

// ErrTransactionRO is returned by Set/Delete on a read-only transaction.
var ErrTransactionRO = errors.New("quadstore: transaction is read-only")

// Storage is the ordered key-value engine backing the four indexes.
type Storage interface {
	Begin(writable bool) (Transaction, error)
	Close() error
	Sync() error
}

// Transaction is a snapshot-isolated read or read-write transaction.
type Transaction interface {
	Get(table Table, key []byte) ([]byte, error)
	Set(table Table, key, value []byte) error
	Delete(table Table, key []byte) error
	// Scan iterates [start, end) within table. A nil start scans from
	// the first key in the table; a nil end scans to the last.
	Scan(table Table, start, end []byte) (Iterator, error)
	Commit() error
	Rollback() error
}

// Iterator walks key-value pairs in ascending key order.
type Iterator interface {
	Next() bool
	Key() []byte
	Value() ([]byte, error)
	Close() error
}

// Table namespaces keys within the storage engine; one per temporal
// index plus the named-graph registry used by CLEAR ALL / DROP.
type Table byte

const (
	TableSPOT Table = iota
	TablePOS
	TableOSP
	TableGSPO
	TableGraphs
	TableCount
)

func (t Table) String() string {
	switch t {
	case TableSPOT:
		return "spot"
	case TablePOS:
		return "pos"
	case TableOSP:
		return "osp"
	case TableGSPO:
		return "gspo"
	case TableGraphs:
		return "graphs"
	default:
		return "unknown"
	}
}

// PrefixKey namespaces key within table.
func PrefixKey(table Table, key []byte) []byte {
	out := make([]byte, 1+len(key))
	out[0] = byte(table)
	copy(out[1:], key)
	return out
}

// TablePrefix returns the single-byte namespace prefix for table.
func TablePrefix(table Table) []byte {
	return []byte{byte(table)}
}
