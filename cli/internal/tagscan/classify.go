package tagscan

// Classify and FindClose are the one-token entry points for hosts that
// inspect a single TextRun. The compressor keeps a Scanner and a
// CloseMatcher alive across tokens instead, so placeholders between runs
// can interrupt them; both paths share the same state machine.

// Classify reports the last tag boundary that starts in text, looking only
// at text itself. A tag still waiting for its '>' at the end of text is
// reported by name; a '<' or name cut off by the end of text is Undecidable
// because the rest lives in whatever token comes next.
func Classify(text string) Result {
	var s Scanner
	res := Result{Kind: None}
	for i := 0; i < len(text); i++ {
		ev := s.Step(text[i])
		if ev.Has(EvTagEnd) {
			res = s.Last()
		}
	}
	switch {
	case s.Pending():
		return Result{Kind: Undecidable}
	case s.st == stName:
		return Result{Kind: Undecidable}
	case s.st == stInside:
		r := s.Last()
		r.Name = string(s.name)
		return r
	case s.st == stDecl || s.st == stComment:
		return s.Last()
	}
	return res
}

// FindClose returns the index just past the closing tag </name ...> in
// text, matching name case-insensitively. ok is false when no complete
// closing tag is present. A match that runs off the end of text before
// its '>' is not complete.
func FindClose(text, name string) (end int, ok bool) {
	m := NewCloseMatcher(name)
	var s Scanner
	inTag := false
	for i := 0; i < len(text); i++ {
		c := text[i]
		if inTag {
			if s.Step(c).Has(EvTagEnd) {
				return i + 1, true
			}
			continue
		}
		if m.Feed(c) {
			s.ResumeClosing(m.Name())
			inTag = true
			if s.Step(c).Has(EvTagEnd) {
				return i + 1, true
			}
		}
	}
	return 0, false
}

// CloseMatcher finds "</name" followed by a byte that cannot continue the
// name, streaming one byte at a time. It is how a preformatted region looks
// for its end while everything else in the region is ignored.
type CloseMatcher struct {
	pat  string
	name string
	i    int
}

// NewCloseMatcher matches the closing tag for name (lowercase expected).
func NewCloseMatcher(name string) CloseMatcher {
	return CloseMatcher{pat: "</" + name, name: name}
}

// Name returns the tag name being matched.
func (m *CloseMatcher) Name() string { return m.name }

// Feed consumes c and reports true when c is the first byte after a
// complete "</name". The caller still owns c: it belongs to the tag body.
func (m *CloseMatcher) Feed(c byte) bool {
	if m.i == len(m.pat) {
		if isNameChar(c) {
			m.i = 0
			return false
		}
		m.i = 0
		return true
	}
	if lower(c) == m.pat[m.i] {
		m.i++
		return false
	}
	m.i = 0
	if c == '<' {
		m.i = 1
	}
	return false
}

// Interrupt resets a partial match: a placeholder inside "</name" hides
// the name, so the region stays open.
func (m *CloseMatcher) Interrupt() {
	m.i = 0
}
