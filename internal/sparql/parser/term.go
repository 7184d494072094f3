// Package parser implements the SPARQL parser (spec §4.H): a
// recursive-descent parser, in the teacher's own style (see the
// teacher's internal/sparql/parser for the skipWhitespace/matchKeyword/
// peek/advance idiom this one follows), that produces a plan of byte
// offsets into the caller's source text rather than a tree of
// allocated term objects. A Term only becomes an *rdf.Term when
// something actually needs one (a constant pattern term at plan-build
// time, a literal inside an expression at eval time); the parser itself
// constructs one only to read a GROUP_CONCAT SEPARATOR string.
package parser

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/aleksaelezovic/trigo/pkg/rdf"
)

// TermKind discriminates the four lexical shapes a pattern position or
// expression operand can take.
type TermKind byte

const (
	KindVariable TermKind = iota + 1
	KindIRI
	KindBlankNode
	KindLiteral
)

// Term is a span into the source text plus a discriminator. Start and
// Length bound the term's raw lexical form exactly as written,
// including surrounding syntax (`<...>`, `?`/`$` sigil, `_:` prefix,
// quotes and any `@lang`/`^^<dt>` suffix) so that Text and Resolve can
// work from the span alone.
type Term struct {
	Kind   TermKind
	Start  int32
	Length int32
}

// Text returns the raw slice of src this term spans.
func (t Term) Text(src string) string {
	return src[t.Start : t.Start+t.Length]
}

// IsZero reports whether t is the unset zero value (used as a sentinel
// for "no explicit GRAPH" on a triple pattern).
func (t Term) IsZero() bool { return t.Kind == 0 }

// Prologue holds the BASE IRI and PREFIX bindings collected before the
// query/update body, needed to resolve a PrefixedName term into an
// absolute IRI.
type Prologue struct {
	Base     string
	Prefixes map[string]string // prefix (without trailing ':') -> IRI
}

func newPrologue() *Prologue {
	return &Prologue{Prefixes: make(map[string]string)}
}

// ResolveIRI turns a bracketed `<...>` or prefixed `pfx:local` lexical
// form (as found in a KindIRI term's Text) into an absolute IRI
// string, applying the prologue's BASE and PREFIX declarations.
func (p *Prologue) ResolveIRI(lexical string) (string, error) {
	if strings.HasPrefix(lexical, "<") && strings.HasSuffix(lexical, ">") {
		iri := lexical[1 : len(lexical)-1]
		if p.Base != "" && !looksAbsolute(iri) {
			return resolveRelative(p.Base, iri), nil
		}
		return iri, nil
	}
	idx := strings.IndexByte(lexical, ':')
	if idx < 0 {
		return "", fmt.Errorf("malformed IRI %q", lexical)
	}
	prefix, local := lexical[:idx], lexical[idx+1:]
	base, ok := p.Prefixes[prefix]
	if !ok {
		return "", fmt.Errorf("undefined prefix %q", prefix)
	}
	return base + unescapePNLocal(local), nil
}

func looksAbsolute(iri string) bool {
	idx := strings.IndexByte(iri, ':')
	return idx > 0
}

func resolveRelative(base, ref string) string {
	if ref == "" {
		return base
	}
	if strings.HasPrefix(ref, "#") {
		if i := strings.IndexByte(base, '#'); i >= 0 {
			base = base[:i]
		}
		return base + ref
	}
	if i := strings.LastIndexByte(base, '/'); i >= 0 {
		return base[:i+1] + ref
	}
	return base + ref
}

func unescapePNLocal(s string) string {
	if !strings.ContainsRune(s, '\\') {
		return s
	}
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			i++
			sb.WriteByte(s[i])
			continue
		}
		sb.WriteByte(s[i])
	}
	return sb.String()
}

// Resolve turns term into a concrete rdf.Term, resolving prefixed IRIs
// against p and unescaping literal/string syntax. Resolve accepts only
// constant terms (a KindVariable is an error); the executor calls it
// again for each row it joins, so results are not cached.
func Resolve(term Term, src string, p *Prologue) (rdf.Term, error) {
	lex := term.Text(src)
	switch term.Kind {
	case KindIRI:
		if lex == "a" {
			return rdf.NewNamedNode("http://www.w3.org/1999/02/22-rdf-syntax-ns#type"), nil
		}
		iri, err := p.ResolveIRI(lex)
		if err != nil {
			return nil, err
		}
		return rdf.NewNamedNode(iri), nil
	case KindBlankNode:
		return rdf.NewBlankNode(strings.TrimPrefix(lex, "_:")), nil
	case KindLiteral:
		return resolveLiteral(lex, p)
	default:
		return nil, fmt.Errorf("cannot resolve variable term %q to a constant", lex)
	}
}

func resolveLiteral(lex string, p *Prologue) (rdf.Term, error) {
	// Bare numeric literal shorthand: 42, -3.14, 1.0e10.
	if lex == "" {
		return nil, fmt.Errorf("empty literal")
	}
	if c := lex[0]; c == '"' || c == '\'' {
		return resolveQuotedLiteral(lex, p)
	}
	if lex == "true" || lex == "false" {
		return rdf.NewBooleanLiteral(lex == "true"), nil
	}
	if strings.ContainsAny(lex, ".eE") && !strings.HasPrefix(lex, "0x") {
		if f, err := strconv.ParseFloat(lex, 64); err == nil {
			return rdf.NewDoubleLiteral(f), nil
		}
	}
	if n, err := strconv.ParseInt(lex, 10, 64); err == nil {
		return rdf.NewIntegerLiteral(n), nil
	}
	return nil, fmt.Errorf("malformed numeric literal %q", lex)
}

func resolveQuotedLiteral(lex string, p *Prologue) (rdf.Term, error) {
	quote := lex[0]
	long := len(lex) >= 6 && lex[1] == quote && lex[2] == quote
	qlen := 1
	if long {
		qlen = 3
	}
	rest := lex[qlen:]
	end := strings.LastIndex(rest, lex[:qlen])
	if end < 0 {
		return nil, fmt.Errorf("malformed literal %q", lex)
	}
	value := unescapeString(rest[:end])
	tail := rest[end+qlen:]

	switch {
	case strings.HasPrefix(tail, "@"):
		return rdf.NewLiteralWithLanguage(value, tail[1:]), nil
	case strings.HasPrefix(tail, "^^"):
		dtTerm := Term{Kind: KindIRI}
		iri, err := p.ResolveIRI(tail[2:])
		if err != nil {
			return nil, err
		}
		_ = dtTerm
		return rdf.NewLiteralWithDatatype(value, rdf.NewNamedNode(iri)), nil
	default:
		return rdf.NewLiteral(value), nil
	}
}

func unescapeString(s string) string {
	if !strings.ContainsRune(s, '\\') {
		return s
	}
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] != '\\' || i+1 >= len(s) {
			sb.WriteByte(s[i])
			continue
		}
		i++
		switch s[i] {
		case 't':
			sb.WriteByte('\t')
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 'b':
			sb.WriteByte('\b')
		case 'f':
			sb.WriteByte('\f')
		case '"', '\'', '\\':
			sb.WriteByte(s[i])
		default:
			sb.WriteByte('\\')
			sb.WriteByte(s[i])
		}
	}
	return sb.String()
}

// VarName returns the variable's name without its `?`/`$` sigil.
func VarName(term Term, src string) string {
	return strings.TrimLeft(term.Text(src), "?$")
}
