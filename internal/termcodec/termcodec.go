// Package termcodec encodes rdf.Term values into the flat byte strings
// interned by internal/atom, and decodes them back. Every atom id in
// the quad store resolves, via atom.Store.Resolve, to bytes produced
// by Encode.
package termcodec

import (
	"bytes"
	"fmt"

	"github.com/aleksaelezovic/trigo/pkg/rdf"
)

// Tag bytes identify which Term variant a payload decodes to. They are
// chosen so that sorting encoded bytes groups terms by kind, which
// keeps the atom hash index's distribution reasonable.
const (
	tagNamedNode    byte = 'I'
	tagBlankNode    byte = 'B'
	tagPlainLiteral byte = 'S'
	tagLangLiteral  byte = 'L'
	tagTypedLiteral byte = 'T'
	tagDefaultGraph byte = 'G'
)

var sep = []byte{0x00}

// Encode produces the canonical byte string for term.
func Encode(term rdf.Term) ([]byte, error) {
	switch t := term.(type) {
	case *rdf.NamedNode:
		return append([]byte{tagNamedNode}, t.IRI...), nil
	case *rdf.BlankNode:
		return append([]byte{tagBlankNode}, t.ID...), nil
	case *rdf.Literal:
		switch t.Type() {
		case rdf.TermTypeStringLiteral:
			return append([]byte{tagPlainLiteral}, t.Value...), nil
		case rdf.TermTypeLangStringLiteral:
			buf := append([]byte{tagLangLiteral}, t.Language...)
			buf = append(buf, sep...)
			buf = append(buf, t.Value...)
			return buf, nil
		case rdf.TermTypeTypedLiteral:
			buf := append([]byte{tagTypedLiteral}, t.Datatype.IRI...)
			buf = append(buf, sep...)
			buf = append(buf, t.Value...)
			return buf, nil
		default:
			return nil, fmt.Errorf("termcodec: literal with unknown kind %v", t.Type())
		}
	case *rdf.DefaultGraph:
		return []byte{tagDefaultGraph}, nil
	default:
		return nil, fmt.Errorf("termcodec: unsupported term type %T", term)
	}
}

// Decode reverses Encode.
func Decode(b []byte) (rdf.Term, error) {
	if len(b) == 0 {
		return nil, fmt.Errorf("termcodec: empty payload")
	}
	tag, payload := b[0], b[1:]

	switch tag {
	case tagNamedNode:
		return rdf.NewNamedNode(string(payload)), nil
	case tagBlankNode:
		return rdf.NewBlankNode(string(payload)), nil
	case tagPlainLiteral:
		return rdf.NewLiteral(string(payload)), nil
	case tagLangLiteral:
		idx := bytes.IndexByte(payload, 0x00)
		if idx < 0 {
			return nil, fmt.Errorf("termcodec: malformed lang literal payload")
		}
		return rdf.NewLiteralWithLanguage(string(payload[idx+1:]), string(payload[:idx])), nil
	case tagTypedLiteral:
		idx := bytes.IndexByte(payload, 0x00)
		if idx < 0 {
			return nil, fmt.Errorf("termcodec: malformed typed literal payload")
		}
		datatype := rdf.NewNamedNode(string(payload[:idx]))
		return rdf.NewLiteralWithDatatype(string(payload[idx+1:]), datatype), nil
	case tagDefaultGraph:
		return rdf.NewDefaultGraph(), nil
	default:
		return nil, fmt.Errorf("termcodec: unknown tag byte %q", tag)
	}
}

// IsNamedNode reports whether encoded bytes decode to a NamedNode,
// without allocating a Term, useful for fast dataset/GRAPH filtering.
func IsNamedNode(b []byte) bool {
	return len(b) > 0 && b[0] == tagNamedNode
}
