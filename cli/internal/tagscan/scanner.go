// Package tagscan classifies markup tag boundaries in text that may be
// interrupted by opaque placeholders. It is an explicit character-level
// state machine: no regular expressions, no backtracking, and no lookahead
// past the byte being fed.
//
// A placeholder can never be inspected, so when one interrupts a tag
// delimiter or tag name the scanner reports Undecidable and the tag is
// treated as if it were not there.
package tagscan

// Kind is the classification of a tag boundary.
type Kind uint8

const (
	None Kind = iota
	Open
	Close
	SelfClosing
	// Declaration covers <!DOCTYPE ...> and other <!name ...> forms.
	Declaration
	Comment
	// Undecidable means a placeholder hid part of the delimiter or name.
	// Consumers treat it exactly like None.
	Undecidable
)

func (k Kind) String() string {
	switch k {
	case None:
		return "none"
	case Open:
		return "open"
	case Close:
		return "close"
	case SelfClosing:
		return "self-closing"
	case Declaration:
		return "declaration"
	case Comment:
		return "comment"
	case Undecidable:
		return "undecidable"
	}
	return "unknown"
}

// Result is a classified tag. Name is lowercase and empty for None,
// Comment and Undecidable.
type Result struct {
	Kind Kind
	Name string
}

// Boundary reports whether r is a real tag boundary.
func (r Result) Boundary() bool {
	return r.Kind != None && r.Kind != Undecidable
}

// Event is a bit set describing what a single Step observed.
type Event uint16

const (
	// EvSpace is whitespace in content.
	EvSpace Event = 1 << iota
	// EvText is a non-whitespace content byte other than '<'.
	EvText
	// EvLT is a '<' that may start a tag; the next byte decides.
	EvLT
	// EvTagStart confirms that the preceding '<' opened a tag.
	EvTagStart
	// EvNotTag means the preceding '<' did not open a tag.
	EvNotTag
	// EvTagEnd is the '>' closing a classified tag; see Scanner.Last.
	EvTagEnd
	// EvUndecidable is raised by Interrupt when a placeholder splits a
	// tag delimiter or name.
	EvUndecidable
)

// Has reports whether all bits of f are set.
func (e Event) Has(f Event) bool { return e&f == f }

type state uint8

const (
	stContent state = iota
	stLT            // after '<'
	stLTSlash       // after '</'
	stLTBang        // after '<!'
	stBangDash      // after '<!-'
	stName          // reading a tag name
	stInside        // after the name, up to '>'
	stDecl          // inside <!name ...>
	stComment       // inside <!-- ... -->
)

// Scanner is the tag boundary state machine. Feed it content bytes with
// Step and signal placeholders with Interrupt. The zero value is ready.
type Scanner struct {
	st        state
	closing   bool
	name      []byte
	lastNonWS byte
	dashes    int
	last      Result
}

// Reset returns the scanner to the content state.
func (s *Scanner) Reset() {
	*s = Scanner{name: s.name[:0]}
}

// InTag reports whether the scanner is between a confirmed tag start and
// its closing '>'.
func (s *Scanner) InTag() bool {
	switch s.st {
	case stName, stInside, stDecl, stComment:
		return true
	}
	return false
}

// InAttrs reports whether the next byte falls in a tag's name or attribute
// area, where whitespace separates attributes rather than content.
func (s *Scanner) InAttrs() bool {
	return s.st == stName || s.st == stInside
}

// Pending reports whether a '<' (or '</', '<!', '<!-') is waiting for the
// byte that decides whether it starts a tag.
func (s *Scanner) Pending() bool {
	switch s.st {
	case stLT, stLTSlash, stLTBang, stBangDash:
		return true
	}
	return false
}

// Last returns the most recent tag completed by EvTagEnd, or the tag being
// scanned when InTag is true.
func (s *Scanner) Last() Result {
	return s.last
}

// ResumeClosing puts the scanner inside a closing tag whose name has
// already been matched elsewhere, so the next '>' raises EvTagEnd.
func (s *Scanner) ResumeClosing(name string) {
	s.st = stInside
	s.closing = true
	s.name = append(s.name[:0], name...)
	s.lastNonWS = 0
	s.last = Result{Kind: Close, Name: name}
}

// Interrupt records a placeholder at the current position. Placeholders are
// transparent in content and inside attributes; anywhere in a tag
// delimiter or name they make the tag undecidable.
func (s *Scanner) Interrupt() Event {
	switch s.st {
	case stLT, stLTSlash, stLTBang, stBangDash, stName:
		s.st = stContent
		s.name = s.name[:0]
		s.last = Result{Kind: Undecidable}
		return EvUndecidable
	}
	return 0
}

// Step feeds one byte.
func (s *Scanner) Step(c byte) Event {
	switch s.st {
	case stContent:
		return s.content(c)
	case stLT:
		switch {
		case isLetter(c):
			s.startName(c, false)
			return EvTagStart
		case c == '/':
			s.st = stLTSlash
			return 0
		case c == '!':
			s.st = stLTBang
			return 0
		}
		return s.notTag(c)
	case stLTSlash:
		if isLetter(c) {
			s.startName(c, true)
			return EvTagStart
		}
		return s.notTag(c)
	case stLTBang:
		switch {
		case isLetter(c):
			s.st = stDecl
			s.lastNonWS = 0
			s.name = append(s.name[:0], lower(c))
			s.last = Result{Kind: Declaration}
			return EvTagStart
		case c == '-':
			s.st = stBangDash
			return 0
		}
		return s.notTag(c)
	case stBangDash:
		if c == '-' {
			s.st = stComment
			s.dashes = 0
			s.last = Result{Kind: Comment}
			return EvTagStart
		}
		return s.notTag(c)
	case stName:
		switch {
		case isNameChar(c):
			s.name = append(s.name, lower(c))
			return 0
		case c == '>':
			return s.endTag()
		case c == '<':
			return s.restart()
		}
		s.st = stInside
		s.lastNonWS = 0
		s.last.Name = string(s.name)
		if !isSpace(c) {
			s.lastNonWS = c
		}
		return 0
	case stInside:
		switch {
		case c == '>':
			return s.endTag()
		case c == '<':
			return s.restart()
		case !isSpace(c):
			s.lastNonWS = c
		}
		return 0
	case stDecl:
		switch {
		case c == '>':
			s.st = stContent
			s.last = Result{Kind: Declaration, Name: string(s.name)}
			return EvTagEnd
		case isNameChar(c) && len(s.name) > 0 && s.lastNonWS == 0:
			s.name = append(s.name, lower(c))
		default:
			s.lastNonWS = 1
		}
		return 0
	case stComment:
		switch {
		case c == '-':
			s.dashes++
		case c == '>' && s.dashes >= 2:
			s.st = stContent
			s.last = Result{Kind: Comment}
			return EvTagEnd
		default:
			s.dashes = 0
		}
		return 0
	}
	return 0
}

func (s *Scanner) content(c byte) Event {
	switch {
	case c == '<':
		s.st = stLT
		return EvLT
	case isSpace(c):
		return EvSpace
	}
	return EvText
}

// notTag abandons a pending '<' and re-reads c as content.
func (s *Scanner) notTag(c byte) Event {
	s.st = stContent
	return EvNotTag | s.content(c)
}

// restart abandons the tag being scanned because a new '<' appeared first.
func (s *Scanner) restart() Event {
	s.name = s.name[:0]
	s.last = Result{Kind: Undecidable}
	s.st = stLT
	return EvLT
}

func (s *Scanner) startName(c byte, closing bool) {
	s.st = stName
	s.closing = closing
	s.lastNonWS = 0
	s.name = append(s.name[:0], lower(c))
	kind := Open
	if closing {
		kind = Close
	}
	s.last = Result{Kind: kind}
}

func (s *Scanner) endTag() Event {
	r := Result{Kind: Open, Name: string(s.name)}
	switch {
	case s.closing:
		r.Kind = Close
	case s.lastNonWS == '/':
		r.Kind = SelfClosing
	}
	s.last = r
	s.st = stContent
	return EvTagEnd
}

func isLetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isNameChar(c byte) bool {
	return isLetter(c) || (c >= '0' && c <= '9') || c == '-' || c == '_' || c == ':' || c == '.'
}

// IsSpace reports whether c is markup whitespace (space, tab, CR, LF, FF).
func IsSpace(c byte) bool { return isSpace(c) }

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r' || c == '\f'
}

func lower(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c + ('a' - 'A')
	}
	return c
}
