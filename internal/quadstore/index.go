package quadstore

import "fmt"

// Pattern describes a quad pattern over atom ids. The Bound flags, not
// the id values, say which positions are constrained: atom id 0 is the
// default graph's id, so G=0 with GBound set matches default-graph
// records, while GBound unset matches every graph.
type Pattern struct {
	S, P, O, G                   uint32
	SBound, PBound, OBound, GBound bool
}

// Put writes a record into all four indexes within an open write
// transaction (spec §4.B: SPOT/POS/OSP index every quad regardless of
// graph; GSPO additionally indexes by graph for named-graph scans).
func Put(txn Transaction, r Record) error {
	valSPOT := encodeValSPOT(r.G, r.ValidTo, r.Deleted)

	if err := txn.Set(TableSPOT, encodeKey3(r.S, r.P, r.O, r.ValidFrom, r.Seq), valSPOT); err != nil {
		return fmt.Errorf("quadstore: write SPOT: %w", err)
	}
	if err := txn.Set(TablePOS, encodeKey3(r.P, r.O, r.S, r.ValidFrom, r.Seq), valSPOT); err != nil {
		return fmt.Errorf("quadstore: write POS: %w", err)
	}
	if err := txn.Set(TableOSP, encodeKey3(r.O, r.S, r.P, r.ValidFrom, r.Seq), valSPOT); err != nil {
		return fmt.Errorf("quadstore: write OSP: %w", err)
	}

	valGSPO := encodeValGSPO(r.ValidTo, r.Deleted)
	if err := txn.Set(TableGSPO, encodeKey4(r.G, r.S, r.P, r.O, r.ValidFrom, r.Seq), valGSPO); err != nil {
		return fmt.Errorf("quadstore: write GSPO: %w", err)
	}
	return nil
}

// RegisterGraph records g as a known named graph, for GRAPH ?g
// enumeration and DROP/CLEAR ALL traversal. Idempotent.
func RegisterGraph(txn Transaction, g uint32) error {
	key := make([]byte, 4)
	putUint32(key, g)
	return txn.Set(TableGraphs, key, []byte{})
}

// ScanGraphs returns every distinct graph id ever registered.
func ScanGraphs(txn Transaction) ([]uint32, error) {
	it, err := txn.Scan(TableGraphs, nil, nil)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var graphs []uint32
	for it.Next() {
		k := it.Key()
		if len(k) < 4 {
			continue
		}
		graphs = append(graphs, getUint32(k))
	}
	return graphs, nil
}

// SelectIndex picks the best index and scan prefix for pat, per spec
// §4.B: an unbound leading position forces an index whose bound columns
// form a prefix; a fully-unbound pattern falls back to a full SPOT scan.
func SelectIndex(pat Pattern) (table Table, prefix []byte) {
	if pat.GBound {
		switch {
		case pat.SBound && pat.PBound && pat.OBound:
			return TableGSPO, concat4(pat.G, pat.S, pat.P, pat.O)
		case pat.SBound && pat.PBound:
			return TableGSPO, concat3(pat.G, pat.S, pat.P)
		case pat.SBound:
			return TableGSPO, concat2(pat.G, pat.S)
		default:
			return TableGSPO, concat1(pat.G)
		}
	}

	switch {
	case pat.SBound && pat.PBound && pat.OBound:
		return TableSPOT, concat3(pat.S, pat.P, pat.O)
	case pat.SBound && pat.PBound:
		return TableSPOT, concat2(pat.S, pat.P)
	case pat.PBound && pat.OBound:
		return TablePOS, concat2(pat.P, pat.O)
	case pat.OBound && pat.SBound:
		return TableOSP, concat2(pat.O, pat.S)
	case pat.SBound:
		return TableSPOT, concat1(pat.S)
	case pat.PBound:
		return TablePOS, concat1(pat.P)
	case pat.OBound:
		return TableOSP, concat1(pat.O)
	default:
		return TableSPOT, nil
	}
}

func concat1(a uint32) []byte {
	b := make([]byte, 4)
	putUint32(b, a)
	return b
}
func concat2(a, c uint32) []byte {
	b := make([]byte, 8)
	putUint32(b[0:4], a)
	putUint32(b[4:8], c)
	return b
}
func concat3(a, c, d uint32) []byte {
	b := make([]byte, 12)
	putUint32(b[0:4], a)
	putUint32(b[4:8], c)
	putUint32(b[8:12], d)
	return b
}
func concat4(a, c, d, e uint32) []byte {
	b := make([]byte, 16)
	putUint32(b[0:4], a)
	putUint32(b[4:8], c)
	putUint32(b[8:12], d)
	putUint32(b[12:16], e)
	return b
}

// prefixUpperBound returns the smallest key strictly greater than every
// key sharing prefix, used as a Scan end bound so range scans stay
// within the keys sharing that prefix.
func prefixUpperBound(prefix []byte) []byte {
	if len(prefix) == 0 {
		return nil
	}
	upper := append([]byte(nil), prefix...)
	for i := len(upper) - 1; i >= 0; i-- {
		if upper[i] < 0xff {
			upper[i]++
			return upper[:i+1]
		}
	}
	return nil // prefix is all 0xff: no upper bound needed
}

// RecordIterator decodes raw index entries back into Records, matching
// pat against columns not already constrained by the scan prefix
// (needed when the chosen index's key order doesn't fully determine all
// bound positions, e.g. POS selected for pattern {P,O bound} also may
// carry an S bound that's naturally satisfied, but a G-bound pattern
// served by SPOT would still need a post-filter on G).
type RecordIterator struct {
	it      Iterator
	table   Table
	pat     Pattern
	current Record
}

// Scan opens a RecordIterator over the index chosen for pat within txn.
func Scan(txn Transaction, pat Pattern) (*RecordIterator, error) {
	table, prefix := SelectIndex(pat)
	it, err := txn.Scan(table, prefix, prefixUpperBound(prefix))
	if err != nil {
		return nil, err
	}
	return &RecordIterator{it: it, table: table, pat: pat}, nil
}

// Next advances to the next record satisfying the pattern, applying a
// post-filter for any bound column the chosen index didn't already
// constrain via its scan prefix. Returns false once exhausted.
func (ri *RecordIterator) Next() bool {
	for ri.it.Next() {
		rec, err := ri.decode()
		if err != nil {
			continue
		}
		if ri.matches(rec) {
			ri.current = rec
			return true
		}
	}
	return false
}

func (ri *RecordIterator) matches(r Record) bool {
	if ri.pat.SBound && r.S != ri.pat.S {
		return false
	}
	if ri.pat.PBound && r.P != ri.pat.P {
		return false
	}
	if ri.pat.OBound && r.O != ri.pat.O {
		return false
	}
	if ri.pat.GBound && r.G != ri.pat.G {
		return false
	}
	return true
}

// Record returns the record at the current iterator position. Only
// valid after a call to Next that returned true.
func (ri *RecordIterator) Record() Record { return ri.current }

// Close releases the underlying storage iterator.
func (ri *RecordIterator) Close() error { return ri.it.Close() }

func (ri *RecordIterator) decode() (Record, error) {
	key := ri.it.Key()
	val, err := ri.it.Value()
	if err != nil {
		return Record{}, err
	}

	switch ri.table {
	case TableSPOT:
		s, p, o, vf, seq := decodeKey3(key)
		g, vt, deleted := decodeValSPOT(val)
		return Record{S: s, P: p, O: o, G: g, ValidFrom: vf, ValidTo: vt, Deleted: deleted, Seq: seq}, nil
	case TablePOS:
		p, o, s, vf, seq := decodeKey3(key)
		g, vt, deleted := decodeValSPOT(val)
		return Record{S: s, P: p, O: o, G: g, ValidFrom: vf, ValidTo: vt, Deleted: deleted, Seq: seq}, nil
	case TableOSP:
		o, s, p, vf, seq := decodeKey3(key)
		g, vt, deleted := decodeValSPOT(val)
		return Record{S: s, P: p, O: o, G: g, ValidFrom: vf, ValidTo: vt, Deleted: deleted, Seq: seq}, nil
	case TableGSPO:
		g, s, p, o, vf, seq := decodeKey4(key)
		vt, deleted := decodeValGSPO(val)
		return Record{S: s, P: p, O: o, G: g, ValidFrom: vf, ValidTo: vt, Deleted: deleted, Seq: seq}, nil
	default:
		return Record{}, fmt.Errorf("quadstore: cannot decode table %v", ri.table)
	}
}
