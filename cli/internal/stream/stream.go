// Package stream defines the token stream exchanged between a template
// host, the compressor, and the host's code generator. A Document is built
// once per template and consumed once; nothing in it is shared across passes.
package stream

import "strings"

// Kind discriminates the token union.
type Kind uint8

const (
	// Text is a run of literal document content.
	Text Kind = iota
	// Placeholder is an opaque template expression or statement. Only its
	// position in the stream is meaningful to the compressor.
	Placeholder
	// StripStart opens an explicitly marked compression region.
	StripStart
	// StripEnd closes an explicitly marked compression region.
	StripEnd
)

// String returns the lowercase name used in encoded token streams.
func (k Kind) String() string {
	switch k {
	case Text:
		return "text"
	case Placeholder:
		return "placeholder"
	case StripStart:
		return "strip_start"
	case StripEnd:
		return "strip_end"
	}
	return "unknown"
}

// ParseKind is the inverse of Kind.String.
func ParseKind(s string) (Kind, bool) {
	switch s {
	case "text":
		return Text, true
	case "placeholder":
		return Placeholder, true
	case "strip_start":
		return StripStart, true
	case "strip_end":
		return StripEnd, true
	}
	return 0, false
}

// Token is one element of a Document. For Text, Value holds the literal
// content. For Placeholder, Raw holds the host's handle (usually the source
// slice); the compressor copies it through and never reads it.
type Token struct {
	Kind  Kind
	Value string
	Raw   string
	Line  int
}

// TextRun returns a Text token.
func TextRun(s string) Token { return Token{Kind: Text, Value: s} }

// Opaque returns a Placeholder token carrying raw as its handle.
func Opaque(raw string) Token { return Token{Kind: Placeholder, Raw: raw} }

// Document is an ordered token sequence for one template.
type Document struct {
	Name   string
	Tokens []Token
}

// New returns a Document over toks.
func New(name string, toks ...Token) Document {
	return Document{Name: name, Tokens: toks}
}

// Source renders the document back to template text: Text values and
// Placeholder handles in order. Strip markers render as nothing.
func (d Document) Source() string {
	var b strings.Builder
	for _, t := range d.Tokens {
		switch t.Kind {
		case Text:
			b.WriteString(t.Value)
		case Placeholder:
			b.WriteString(t.Raw)
		}
	}
	return b.String()
}

// TextLen is the total byte length of all Text tokens.
func (d Document) TextLen() int {
	n := 0
	for _, t := range d.Tokens {
		if t.Kind == Text {
			n += len(t.Value)
		}
	}
	return n
}

// Equal reports whether two documents hold the same tokens in the same order.
// Names and line numbers are ignored.
func (d Document) Equal(o Document) bool {
	if len(d.Tokens) != len(o.Tokens) {
		return false
	}
	for i, t := range d.Tokens {
		u := o.Tokens[i]
		if t.Kind != u.Kind || t.Value != u.Value || t.Raw != u.Raw {
			return false
		}
	}
	return true
}
