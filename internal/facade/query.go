package facade

import (
	"sort"

	"github.com/aleksaelezovic/trigo/internal/quadstore"
	"github.com/aleksaelezovic/trigo/internal/termcodec"
	"github.com/aleksaelezovic/trigo/pkg/rdf"
)

// Pattern is a quad pattern over RDF terms; a nil field means unbound.
type Pattern struct {
	Subject   rdf.Term
	Predicate rdf.Term
	Object    rdf.Term
	Graph     rdf.Term
}

// TemporalQuad pairs a decoded quad with the validity metadata of the
// index record it came from.
type TemporalQuad struct {
	Quad      *rdf.Quad
	ValidFrom int64
	ValidTo   int64
	Deleted   bool
}

type quadKey struct{ s, p, o, g uint32 }

// toStorePattern resolves pattern's bound terms to atom ids. An
// unbound field stays unbound; a bound field with no matching atom
// makes the whole pattern unsatisfiable (returns ok=false).
func (s *Store) toStorePattern(pattern Pattern) (quadstore.Pattern, bool, error) {
	var pat quadstore.Pattern

	bind := func(term rdf.Term, id *uint32, bound *bool) (bool, error) {
		if term == nil {
			return true, nil
		}
		resolved, found, err := s.resolveTerm(term)
		if err != nil {
			return false, err
		}
		if !found {
			return false, nil
		}
		*id, *bound = resolved, true
		return true, nil
	}

	if ok, err := bind(pattern.Subject, &pat.S, &pat.SBound); err != nil || !ok {
		return pat, false, err
	}
	if ok, err := bind(pattern.Predicate, &pat.P, &pat.PBound); err != nil || !ok {
		return pat, false, err
	}
	if ok, err := bind(pattern.Object, &pat.O, &pat.OBound); err != nil || !ok {
		return pat, false, err
	}
	if ok, err := bind(pattern.Graph, &pat.G, &pat.GBound); err != nil || !ok {
		return pat, false, err
	}
	return pat, true, nil
}

func (s *Store) decodeRecord(r quadstore.Record) (*rdf.Quad, error) {
	subj, err := termcodec.Decode(s.atoms.Resolve(r.S))
	if err != nil {
		return nil, err
	}
	pred, err := termcodec.Decode(s.atoms.Resolve(r.P))
	if err != nil {
		return nil, err
	}
	obj, err := termcodec.Decode(s.atoms.Resolve(r.O))
	if err != nil {
		return nil, err
	}
	var graph rdf.Term
	if r.G == 0 {
		graph = rdf.NewDefaultGraph()
	} else {
		graph, err = termcodec.Decode(s.atoms.Resolve(r.G))
		if err != nil {
			return nil, err
		}
	}
	return rdf.NewQuad(subj, pred, obj, graph), nil
}

// scanAll collects every record matching pattern, read-locked for the
// duration of the scan.
func (s *Store) scanAll(owner any, pattern Pattern) ([]quadstore.Record, error) {
	if err := s.lock.acquireRead(owner); err != nil {
		return nil, err
	}
	defer s.lock.releaseRead(owner)

	pat, ok, err := s.toStorePattern(pattern)
	if err != nil || !ok {
		return nil, err
	}

	txn, err := s.storage.Begin(false)
	if err != nil {
		return nil, err
	}
	defer txn.Rollback()

	it, err := quadstore.Scan(txn, pat)
	if err != nil {
		return nil, err
	}
	defer it.Close()

	var records []quadstore.Record
	for it.Next() {
		records = append(records, it.Record())
	}
	return records, nil
}

// QueryCurrent yields the live (non-tombstoned, open-ended) version of
// every quad matching pattern.
func (s *Store) QueryCurrent(owner any, pattern Pattern) ([]TemporalQuad, error) {
	records, err := s.scanAll(owner, pattern)
	if err != nil {
		return nil, err
	}

	latest := latestPerKey(records)
	var out []TemporalQuad
	for _, r := range latest {
		if r.ValidTo != quadstore.OpenFuture || r.Deleted {
			continue
		}
		quad, err := s.decodeRecord(r)
		if err != nil {
			return nil, err
		}
		out = append(out, TemporalQuad{Quad: quad, ValidFrom: r.ValidFrom, ValidTo: r.ValidTo, Deleted: r.Deleted})
	}
	return out, nil
}

// QueryAsOf yields the version of every matching quad that was live at
// instant tau: the latest version with ValidFrom <= tau whose interval
// still covers tau and which is not a tombstone.
func (s *Store) QueryAsOf(owner any, pattern Pattern, tau int64) ([]TemporalQuad, error) {
	records, err := s.scanAll(owner, pattern)
	if err != nil {
		return nil, err
	}

	byKey := make(map[quadKey][]quadstore.Record)
	for _, r := range records {
		if r.ValidFrom > tau {
			continue
		}
		k := quadKey{r.S, r.P, r.O, r.G}
		byKey[k] = append(byKey[k], r)
	}

	var out []TemporalQuad
	for _, versions := range byKey {
		latest := latestOf(versions)
		if latest.Deleted || !(latest.ValidFrom <= tau && tau < latest.ValidTo) {
			continue
		}
		quad, err := s.decodeRecord(latest)
		if err != nil {
			return nil, err
		}
		out = append(out, TemporalQuad{Quad: quad, ValidFrom: latest.ValidFrom, ValidTo: latest.ValidTo, Deleted: latest.Deleted})
	}
	return out, nil
}

// TimeTravelTo is QueryAsOf under the name spec §4.C gives readers who
// want "the whole state at tau".
func (s *Store) TimeTravelTo(owner any, pattern Pattern, tau int64) ([]TemporalQuad, error) {
	return s.QueryAsOf(owner, pattern, tau)
}

// QueryChanges yields every record (including tombstones) whose
// validity interval overlaps [rangeStart, rangeEnd).
func (s *Store) QueryChanges(owner any, pattern Pattern, rangeStart, rangeEnd int64) ([]TemporalQuad, error) {
	records, err := s.scanAll(owner, pattern)
	if err != nil {
		return nil, err
	}

	var out []TemporalQuad
	for _, r := range records {
		if r.ValidFrom < rangeEnd && r.ValidTo > rangeStart {
			quad, err := s.decodeRecord(r)
			if err != nil {
				return nil, err
			}
			out = append(out, TemporalQuad{Quad: quad, ValidFrom: r.ValidFrom, ValidTo: r.ValidTo, Deleted: r.Deleted})
		}
	}
	return out, nil
}

// QueryEvolution yields every record ever written for pattern,
// ignoring validity and tombstones, in insertion (Seq) order.
func (s *Store) QueryEvolution(owner any, pattern Pattern) ([]TemporalQuad, error) {
	records, err := s.scanAll(owner, pattern)
	if err != nil {
		return nil, err
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Seq < records[j].Seq })

	var out []TemporalQuad
	for _, r := range records {
		quad, err := s.decodeRecord(r)
		if err != nil {
			return nil, err
		}
		out = append(out, TemporalQuad{Quad: quad, ValidFrom: r.ValidFrom, ValidTo: r.ValidTo, Deleted: r.Deleted})
	}
	return out, nil
}

// Graphs returns every named graph ever registered by a quad write
// (spec §4.K's `GRAPH ?g { ... }` dataset, which excludes the default
// graph).
func (s *Store) Graphs(owner any) ([]rdf.Term, error) {
	if err := s.lock.acquireRead(owner); err != nil {
		return nil, err
	}
	defer s.lock.releaseRead(owner)

	txn, err := s.storage.Begin(false)
	if err != nil {
		return nil, err
	}
	defer txn.Rollback()

	ids, err := quadstore.ScanGraphs(txn)
	if err != nil {
		return nil, err
	}
	out := make([]rdf.Term, 0, len(ids))
	for _, id := range ids {
		term, err := termcodec.Decode(s.atoms.Resolve(id))
		if err != nil {
			return nil, err
		}
		out = append(out, term)
	}
	return out, nil
}

func latestPerKey(records []quadstore.Record) []quadstore.Record {
	byKey := make(map[quadKey][]quadstore.Record)
	for _, r := range records {
		k := quadKey{r.S, r.P, r.O, r.G}
		byKey[k] = append(byKey[k], r)
	}
	out := make([]quadstore.Record, 0, len(byKey))
	for _, versions := range byKey {
		out = append(out, latestOf(versions))
	}
	return out
}

// latestOf picks the version with the greatest (ValidFrom, Seq), the
// ordering index scans already use for tie-breaking (spec §4.B).
func latestOf(versions []quadstore.Record) quadstore.Record {
	latest := versions[0]
	for _, r := range versions[1:] {
		if r.ValidFrom > latest.ValidFrom || (r.ValidFrom == latest.ValidFrom && r.Seq > latest.Seq) {
			latest = r
		}
	}
	return latest
}
