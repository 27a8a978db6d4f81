// Package lexer splits Jinja-style template source into a stream.Document:
// literal markup becomes Text tokens, every expression, statement and
// comment becomes one opaque Placeholder, and {% strip %} / {% endstrip %}
// become region markers for selective compression.
//
// The lexer is the host side of the compressor: it knows the template
// delimiters but nothing about what the placeholders mean.
package lexer

import (
	"strings"

	"tagtrim/cli/internal/erruser"
	"tagtrim/cli/internal/stream"
)

// Syntax holds the template delimiters.
type Syntax struct {
	BlockStart   string `toml:"block_start"`
	BlockEnd     string `toml:"block_end"`
	VarStart     string `toml:"variable_start"`
	VarEnd       string `toml:"variable_end"`
	CommentStart string `toml:"comment_start"`
	CommentEnd   string `toml:"comment_end"`
}

// DefaultSyntax returns {% %}, {{ }} and {# #}.
func DefaultSyntax() Syntax {
	return Syntax{
		BlockStart:   "{%",
		BlockEnd:     "%}",
		VarStart:     "{{",
		VarEnd:       "}}",
		CommentStart: "{#",
		CommentEnd:   "#}",
	}
}

// Validate rejects empty or clashing delimiters.
func (s Syntax) Validate() error {
	for _, d := range []string{s.BlockStart, s.BlockEnd, s.VarStart, s.VarEnd, s.CommentStart, s.CommentEnd} {
		if strings.TrimSpace(d) == "" {
			return erruser.Coded(erruser.CodeConfigValue, "Template delimiters must not be empty.", nil)
		}
	}
	if s.BlockStart == s.VarStart || s.BlockStart == s.CommentStart || s.VarStart == s.CommentStart {
		return erruser.Coded(erruser.CodeConfigValue, "Template start delimiters must be distinct.", nil)
	}
	return nil
}

const (
	kwStrip    = "strip"
	kwEndStrip = "endstrip"
	kwRaw      = "raw"
	kwEndRaw   = "endraw"
)

type lexer struct {
	name  string
	src   string
	syn   Syntax
	pos   int
	line  int
	depth int
	toks  []stream.Token
}

// Lex tokenizes src. name is used in error messages and as the Document name.
func Lex(name, src string, syn Syntax) (stream.Document, error) {
	if err := syn.Validate(); err != nil {
		return stream.Document{}, err
	}
	l := &lexer{name: name, src: src, syn: syn, line: 1}
	if err := l.run(); err != nil {
		return stream.Document{}, err
	}
	return stream.Document{Name: name, Tokens: l.toks}, nil
}

func (l *lexer) run() error {
	for l.pos < len(l.src) {
		start, open := l.nextOpen()
		if start < 0 {
			l.emitText(l.src[l.pos:])
			break
		}
		l.emitText(l.src[l.pos:start])
		var err error
		switch open {
		case l.syn.CommentStart:
			err = l.comment(start)
		case l.syn.VarStart:
			err = l.variable(start)
		default:
			err = l.block(start)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// nextOpen finds the earliest start delimiter at or after pos. Ties go to
// the longer delimiter so custom syntaxes with shared prefixes work.
func (l *lexer) nextOpen() (int, string) {
	best, which := -1, ""
	for _, d := range []string{l.syn.BlockStart, l.syn.VarStart, l.syn.CommentStart} {
		i := strings.Index(l.src[l.pos:], d)
		if i < 0 {
			continue
		}
		i += l.pos
		if best < 0 || i < best || (i == best && len(d) > len(which)) {
			best, which = i, d
		}
	}
	return best, which
}

func (l *lexer) emitText(s string) {
	if s == "" {
		return
	}
	l.toks = append(l.toks, stream.Token{Kind: stream.Text, Value: s, Line: l.line})
	l.advance(len(s))
}

func (l *lexer) emit(kind stream.Kind, raw string) {
	l.toks = append(l.toks, stream.Token{Kind: kind, Raw: raw, Line: l.line})
	l.advance(len(raw))
}

func (l *lexer) advance(n int) {
	l.line += strings.Count(l.src[l.pos:l.pos+n], "\n")
	l.pos += n
}

func (l *lexer) comment(start int) error {
	body := start + len(l.syn.CommentStart)
	i := strings.Index(l.src[body:], l.syn.CommentEnd)
	if i < 0 {
		return l.errorf("unterminated comment")
	}
	l.emit(stream.Placeholder, l.src[start:body+i+len(l.syn.CommentEnd)])
	return nil
}

func (l *lexer) variable(start int) error {
	end, ok := l.closeQuoted(start+len(l.syn.VarStart), l.syn.VarEnd)
	if !ok {
		return l.errorf("unterminated expression")
	}
	l.emit(stream.Placeholder, l.src[start:end])
	return nil
}

func (l *lexer) block(start int) error {
	end, ok := l.closeQuoted(start+len(l.syn.BlockStart), l.syn.BlockEnd)
	if !ok {
		return l.errorf("unterminated block")
	}
	raw := l.src[start:end]
	fields := strings.Fields(l.inner(raw))
	if len(fields) == 0 {
		l.emit(stream.Placeholder, raw)
		return nil
	}
	switch fields[0] {
	case kwStrip:
		if len(fields) > 1 {
			return l.errorf("expected end of block after %q, got %q", kwStrip, fields[1])
		}
		l.depth++
		l.emit(stream.StripStart, raw)
	case kwEndStrip:
		if len(fields) > 1 {
			return l.errorf("expected end of block after %q, got %q", kwEndStrip, fields[1])
		}
		if l.depth == 0 {
			return l.errorf("unexpected %q", kwEndStrip)
		}
		l.depth--
		l.emit(stream.StripEnd, raw)
	case kwRaw:
		return l.raw(start, end)
	default:
		l.emit(stream.Placeholder, raw)
	}
	return nil
}

// raw swallows everything up to and including the matching endraw block
// into a single placeholder.
func (l *lexer) raw(start, from int) error {
	for i := from; i < len(l.src); {
		j := strings.Index(l.src[i:], l.syn.BlockStart)
		if j < 0 {
			break
		}
		j += i
		end, ok := l.closeQuoted(j+len(l.syn.BlockStart), l.syn.BlockEnd)
		if !ok {
			break
		}
		if f := strings.Fields(l.inner(l.src[j:end])); len(f) == 1 && f[0] == kwEndRaw {
			l.emit(stream.Placeholder, l.src[start:end])
			return nil
		}
		i = end
	}
	return l.errorf("unterminated %q block", kwRaw)
}

// inner strips the block delimiters and whitespace-control markers.
func (l *lexer) inner(raw string) string {
	s := strings.TrimPrefix(raw, l.syn.BlockStart)
	s = strings.TrimSuffix(s, l.syn.BlockEnd)
	s = strings.TrimLeft(s, "-+")
	s = strings.TrimRight(s, "-+")
	return s
}

// closeQuoted returns the index just past endDelim, skipping over quoted
// strings so "{{ '}}' }}" is one expression.
func (l *lexer) closeQuoted(from int, endDelim string) (int, bool) {
	var quote byte
	for i := from; i < len(l.src); i++ {
		c := l.src[i]
		if quote != 0 {
			switch c {
			case '\\':
				i++
			case quote:
				quote = 0
			}
			continue
		}
		if c == '"' || c == '\'' {
			quote = c
			continue
		}
		if strings.HasPrefix(l.src[i:], endDelim) {
			return i + len(endDelim), true
		}
	}
	return 0, false
}

func (l *lexer) errorf(format string, args ...any) error {
	return erruser.Codedf(erruser.CodeSyntax, nil, "%s:%d: "+format, append([]any{l.name, l.line}, args...)...)
}
