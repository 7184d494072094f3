package quadstore

import "testing"

func openTestStorage(t *testing.T) Storage {
	t.Helper()
	s, err := NewBadgerStorage(t.TempDir())
	if err != nil {
		t.Fatalf("NewBadgerStorage: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestPutAndScanBySubject(t *testing.T) {
	storage := openTestStorage(t)
	txn, err := storage.Begin(true)
	if err != nil {
		t.Fatalf("Begin: %v", err)
	}

	rec := Record{S: 1, P: 2, O: 3, G: 9, ValidFrom: 100, ValidTo: OpenFuture, Seq: 1}
	if err := Put(txn, rec); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := txn.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	txn, err = storage.Begin(false)
	if err != nil {
		t.Fatalf("Begin read: %v", err)
	}
	defer txn.Rollback()

	it, err := Scan(txn, Pattern{S: 1, SBound: true})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	defer it.Close()

	if !it.Next() {
		t.Fatal("expected one matching record")
	}
	got := it.Record()
	if got.S != 1 || got.P != 2 || got.O != 3 || got.G != 9 {
		t.Errorf("decoded record = %+v, want S=1 P=2 O=3 G=9", got)
	}
	if it.Next() {
		t.Fatal("expected exactly one record")
	}
}

func TestScanPostFiltersUnboundIndexColumns(t *testing.T) {
	storage := openTestStorage(t)
	txn, _ := storage.Begin(true)

	for i, quad := range [][3]uint32{{1, 2, 3}, {1, 2, 4}, {1, 5, 3}} {
		rec := Record{S: quad[0], P: quad[1], O: quad[2], G: 9, ValidFrom: int64(i), ValidTo: OpenFuture, Seq: uint64(i)}
		if err := Put(txn, rec); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}
	if err := txn.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	txn, _ = storage.Begin(false)
	defer txn.Rollback()

	// pattern (1, ?, 3) should pick OSP (O,S bound) and match one record
	it, err := Scan(txn, Pattern{S: 1, SBound: true, O: 3, OBound: true})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	defer it.Close()

	count := 0
	for it.Next() {
		count++
		r := it.Record()
		if r.S != 1 || r.O != 3 {
			t.Errorf("unexpected record %+v for pattern (1,?,3)", r)
		}
	}
	if count != 1 {
		t.Errorf("expected 1 match for (1,?,3), got %d", count)
	}
}

func TestSelectIndexChoosesBoundColumns(t *testing.T) {
	cases := []struct {
		name string
		pat  Pattern
		want Table
	}{
		{"s-p bound", Pattern{S: 1, SBound: true, P: 2, PBound: true}, TableSPOT},
		{"p-o bound", Pattern{P: 1, PBound: true, O: 2, OBound: true}, TablePOS},
		{"o-s bound", Pattern{O: 1, OBound: true, S: 2, SBound: true}, TableOSP},
		{"g bound only", Pattern{G: 1, GBound: true}, TableGSPO},
		{"nothing bound", Pattern{}, TableSPOT},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, _ := SelectIndex(tc.pat)
			if got != tc.want {
				t.Errorf("SelectIndex(%+v) = %v, want %v", tc.pat, got, tc.want)
			}
		})
	}
}

func TestPrefixUpperBound(t *testing.T) {
	prefix := []byte{0x00, 0x01, 0xff}
	upper := prefixUpperBound(prefix)
	want := []byte{0x00, 0x02}
	if string(upper) != string(want) {
		t.Errorf("prefixUpperBound(%v) = %v, want %v", prefix, upper, want)
	}
}
