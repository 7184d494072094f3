package facade

import (
	"encoding/binary"

	"github.com/aleksaelezovic/trigo/internal/quadstore"
)

// quadPayload is the WAL encoding shared by QUAD_ADD and QUAD_DELETE
// records: s,p,o,g atom ids, the validity interval, the deleted flag,
// and the Seq this record was assigned at append time.
func encodeQuadPayload(r quadstore.Record) []byte {
	buf := make([]byte, 4*4+8+8+1+8)
	binary.BigEndian.PutUint32(buf[0:4], r.S)
	binary.BigEndian.PutUint32(buf[4:8], r.P)
	binary.BigEndian.PutUint32(buf[8:12], r.O)
	binary.BigEndian.PutUint32(buf[12:16], r.G)
	binary.BigEndian.PutUint64(buf[16:24], uint64(r.ValidFrom))
	binary.BigEndian.PutUint64(buf[24:32], uint64(r.ValidTo))
	if r.Deleted {
		buf[32] = 1
	}
	binary.BigEndian.PutUint64(buf[33:41], r.Seq)
	return buf
}

func decodeQuadPayload(buf []byte) quadstore.Record {
	return quadstore.Record{
		S:         binary.BigEndian.Uint32(buf[0:4]),
		P:         binary.BigEndian.Uint32(buf[4:8]),
		O:         binary.BigEndian.Uint32(buf[8:12]),
		G:         binary.BigEndian.Uint32(buf[12:16]),
		ValidFrom: int64(binary.BigEndian.Uint64(buf[16:24])),
		ValidTo:   int64(binary.BigEndian.Uint64(buf[24:32])),
		Deleted:   buf[32] != 0,
		Seq:       binary.BigEndian.Uint64(buf[33:41]),
	}
}
