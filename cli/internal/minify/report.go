package minify

// NoticeKind classifies a non-fatal condition met during a pass.
type NoticeKind uint8

const (
	// NoticeAmbiguousTagBoundary: a placeholder split a tag delimiter or
	// name, so the tag was treated as a non-boundary.
	NoticeAmbiguousTagBoundary NoticeKind = iota
	// NoticeUnmatchedPreformattedOpen: a preformatted region was still open
	// at the end of the stream; the remainder was emitted verbatim.
	NoticeUnmatchedPreformattedOpen
	// NoticeUnbalancedStripEnd: a StripEnd marker with no open region.
	NoticeUnbalancedStripEnd
)

func (k NoticeKind) String() string {
	switch k {
	case NoticeAmbiguousTagBoundary:
		return "ambiguous-tag-boundary"
	case NoticeUnmatchedPreformattedOpen:
		return "unmatched-preformatted-open"
	case NoticeUnbalancedStripEnd:
		return "unbalanced-strip-end"
	}
	return "unknown"
}

// Notice records where a NoticeKind occurred. Token indexes the input
// document; Line is that token's source line when the host recorded one.
type Notice struct {
	Kind  NoticeKind
	Token int
	Line  int
	Tag   string
}

// Report summarizes one pass.
type Report struct {
	Tokens        int
	TextBytesIn   int
	TextBytesOut  int
	RunsStripped  int
	RunsCollapsed int
	Notices       []Notice
}

// Saved is the number of text bytes removed.
func (r Report) Saved() int {
	return r.TextBytesIn - r.TextBytesOut
}

// Count returns how many notices of kind were raised.
func (r Report) Count(kind NoticeKind) int {
	n := 0
	for _, x := range r.Notices {
		if x.Kind == kind {
			n++
		}
	}
	return n
}
