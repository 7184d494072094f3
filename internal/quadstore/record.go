package quadstore

import "encoding/binary"

// OpenFuture is the reserved ValidTo sentinel meaning "open-ended,
// valid until superseded or deleted" (spec §3).
const OpenFuture int64 = 1<<63 - 1

// Flag bits stored in a record's value.
const (
	FlagDeleted byte = 1 << iota
)

// Record is the fixed-width temporal quad row (spec §3). It is
// immutable once appended: deletion writes a new Record with
// FlagDeleted set rather than mutating an existing one.
type Record struct {
	S, P, O, G         uint32
	ValidFrom, ValidTo int64
	Deleted            bool
	// Seq is the monotonic append position (WAL/log order) this record
	// was written at. It disambiguates otherwise-equal index keys and
	// gives queryEvolution and tie-breaking a total order.
	Seq uint64
}

const (
	atomIDSize  = 4
	tickSize    = 8
	seqSize     = 8
	flagsSize   = 1
	spotKeyLen  = atomIDSize*3 + tickSize + seqSize
	gspoKeyLen  = atomIDSize*4 + tickSize + seqSize
	spotValLen  = atomIDSize + tickSize + flagsSize // carries G
	gspoValLen  = tickSize + flagsSize              // G already in key
)

// encodeTick maps a signed tick to an order-preserving unsigned
// big-endian encoding (flip the sign bit) so lexicographic byte
// comparison matches numeric comparison, including negative ticks.
func encodeTick(v int64) [8]byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v)^(1<<63))
	return b
}

func decodeTick(b []byte) int64 {
	return int64(binary.BigEndian.Uint64(b) ^ (1 << 63))
}

func putUint32(dst []byte, v uint32) { binary.BigEndian.PutUint32(dst, v) }
func getUint32(src []byte) uint32    { return binary.BigEndian.Uint32(src) }
func putUint64(dst []byte, v uint64) { binary.BigEndian.PutUint64(dst, v) }
func getUint64(src []byte) uint64    { return binary.BigEndian.Uint64(src) }

// encodeKey3 builds a {col0,col1,col2,validFrom,seq} key used by SPOT,
// POS, and OSP (each a different permutation of S/P/O supplied by the
// caller as col0..col2).
func encodeKey3(col0, col1, col2 uint32, validFrom int64, seq uint64) []byte {
	key := make([]byte, spotKeyLen)
	putUint32(key[0:4], col0)
	putUint32(key[4:8], col1)
	putUint32(key[8:12], col2)
	tick := encodeTick(validFrom)
	copy(key[12:20], tick[:])
	putUint64(key[20:28], seq)
	return key
}

// encodeKey4 builds a {col0,col1,col2,col3,validFrom,seq} key used by
// GSPO.
func encodeKey4(col0, col1, col2, col3 uint32, validFrom int64, seq uint64) []byte {
	key := make([]byte, gspoKeyLen)
	putUint32(key[0:4], col0)
	putUint32(key[4:8], col1)
	putUint32(key[8:12], col2)
	putUint32(key[12:16], col3)
	tick := encodeTick(validFrom)
	copy(key[16:24], tick[:])
	putUint64(key[24:32], seq)
	return key
}

// encodeValSPOT packs the graph id, validTo, and flags not already
// present in an SPOT/POS/OSP key.
func encodeValSPOT(g uint32, validTo int64, deleted bool) []byte {
	val := make([]byte, spotValLen)
	putUint32(val[0:4], g)
	tick := encodeTick(validTo)
	copy(val[4:12], tick[:])
	if deleted {
		val[12] = FlagDeleted
	}
	return val
}

func decodeValSPOT(val []byte) (g uint32, validTo int64, deleted bool) {
	g = getUint32(val[0:4])
	validTo = decodeTick(val[4:12])
	deleted = val[12]&FlagDeleted != 0
	return
}

func encodeValGSPO(validTo int64, deleted bool) []byte {
	val := make([]byte, gspoValLen)
	tick := encodeTick(validTo)
	copy(val[0:8], tick[:])
	if deleted {
		val[8] = FlagDeleted
	}
	return val
}

func decodeValGSPO(val []byte) (validTo int64, deleted bool) {
	validTo = decodeTick(val[0:8])
	deleted = val[8]&FlagDeleted != 0
	return
}

func decodeKey3(key []byte) (col0, col1, col2 uint32, validFrom int64, seq uint64) {
	col0 = getUint32(key[0:4])
	col1 = getUint32(key[4:8])
	col2 = getUint32(key[8:12])
	validFrom = decodeTick(key[12:20])
	seq = getUint64(key[20:28])
	return
}

func decodeKey4(key []byte) (col0, col1, col2, col3 uint32, validFrom int64, seq uint64) {
	col0 = getUint32(key[0:4])
	col1 = getUint32(key[4:8])
	col2 = getUint32(key[8:12])
	col3 = getUint32(key[12:16])
	validFrom = decodeTick(key[16:24])
	seq = getUint64(key[24:32])
	return
}
