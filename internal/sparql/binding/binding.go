// Package binding implements the binding table (spec §4.I): the
// per-solution row the query executor builds up as it walks a graph
// pattern. A Table is an append-only sequence of (variable name, typed
// value) pairs; later binds for the same name shadow earlier ones
// rather than overwriting them in place, so a Table can be cheaply
// cloned at a branch point (OPTIONAL, UNION, nested-loop join) by
// copying its entry slice, and the clone's new binds never disturb the
// original.
package binding

// Kind discriminates the dynamic type carried by a Value.
type Kind byte

const (
	Unbound Kind = iota
	Integer
	Double
	Boolean
	String
	IRI
	BlankNode
)

// Value is a single typed binding. Str holds the lexical form for
// String/IRI/BlankNode kinds, sliced from a Table's arena (or the
// source query text, for constant terms) rather than copied. Lang and
// Datatype annotate a String value the way an RDF literal would;
// both empty means a plain xsd:string.
type Value struct {
	Kind     Kind
	Int      int64
	Double   float64
	Bool     bool
	Str      []byte
	Lang     string
	Datatype string
}

// IsBound reports whether v carries an actual value.
func (v Value) IsBound() bool { return v.Kind != Unbound }

// entry is one append-only slot in a Table.
type entry struct {
	name  string
	value Value
}

// Table is a single solution's bindings, plus the byte arena that
// backs any String/IRI/BlankNode values materialised into it (as
// opposed to values borrowed from elsewhere, e.g. a constant term's
// bytes in the source query). The arena lets the evaluator build
// strings (CONCAT, SUBSTR, string-valued functions) without one heap
// allocation per substring.
type Table struct {
	entries []entry
	arena   []byte
}

// New returns an empty Table.
func New() *Table {
	return &Table{}
}

// Bind appends a (name, value) pair. A later Bind for the same name
// shadows, rather than replaces, the earlier one: FindBinding returns
// the most recent.
func (t *Table) Bind(name string, v Value) {
	t.entries = append(t.entries, entry{name: name, value: v})
}

// BindString is Bind for a value the caller wants copied into this
// Table's arena (so the caller's own buffer can be reused or
// discarded). It returns nothing; use Bind directly to borrow bytes
// that are already safe to alias (e.g. immutable query source text).
func (t *Table) BindString(name string, s []byte, lang, datatype string) {
	t.Bind(name, Value{Kind: String, Str: t.intern(s), Lang: lang, Datatype: datatype})
}

func (t *Table) intern(s []byte) []byte {
	start := len(t.arena)
	t.arena = append(t.arena, s...)
	return t.arena[start:len(t.arena):len(t.arena)]
}

// FindBinding returns the index of the most recent bind for name, or
// -1 if name is unbound in this row.
func (t *Table) FindBinding(name string) int {
	for i := len(t.entries) - 1; i >= 0; i-- {
		if t.entries[i].name == name {
			return i
		}
	}
	return -1
}

// Lookup is FindBinding plus Value, for the common case.
func (t *Table) Lookup(name string) (Value, bool) {
	i := t.FindBinding(name)
	if i < 0 {
		return Value{}, false
	}
	return t.entries[i].value, true
}

// GetString returns the Str bytes of the value at index.
func (t *Table) GetString(index int) []byte {
	return t.entries[index].value.Str
}

// ValueAt returns the value at index.
func (t *Table) ValueAt(index int) Value {
	return t.entries[index].value
}

// NameAt returns the variable name at index.
func (t *Table) NameAt(index int) string {
	return t.entries[index].name
}

// Clear empties the table for reuse, keeping its arena capacity.
func (t *Table) Clear() {
	t.entries = t.entries[:0]
	t.arena = t.arena[:0]
}

// Count returns the number of bind entries (including shadowed ones).
func (t *Table) Count() int { return len(t.entries) }

// Clone returns an independent copy sharing no backing storage with
// t, for use at a pipeline branch point (OPTIONAL, UNION, VALUES,
// nested-loop join) where the two branches must be free to extend the
// row without interfering with each other. Every Str value is
// recopied into the clone's own arena, even values borrowed from
// immutable query source text, trading a harmless extra copy for not
// having to track where each slice originally came from.
func (t *Table) Clone() *Table {
	c := &Table{entries: make([]entry, len(t.entries))}
	for i, e := range t.entries {
		if len(e.value.Str) > 0 {
			e.value.Str = c.intern(e.value.Str)
		}
		c.entries[i] = e
	}
	return c
}

// Names returns the distinct variable names bound in t, most-recent
// shadowing first, in the order a projection would want to consult
// them (reverse bind order, deduplicated).
func (t *Table) Names() []string {
	seen := make(map[string]bool, len(t.entries))
	var out []string
	for i := len(t.entries) - 1; i >= 0; i-- {
		n := t.entries[i].name
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}
