// Package minify removes insignificant whitespace between markup tags in a
// template token stream. Text runs are rewritten in place; placeholders are
// copied through untouched and treated as zero-width when deciding whether
// two tags are adjacent. Whitespace inside preformatted regions (pre,
// textarea, script, ...) is never altered.
//
// A pass is a single forward scan with no shared state, so documents may be
// compressed concurrently with the same Options.
package minify

import (
	"sort"
	"strings"

	"tagtrim/cli/internal/erruser"
	"tagtrim/cli/internal/stream"
	"tagtrim/cli/internal/tagscan"
	"tagtrim/cli/internal/trace"
)

// Mode selects where compression applies.
type Mode uint8

const (
	// Full compresses everywhere outside preformatted regions.
	Full Mode = iota
	// Selective compresses only between StripStart and StripEnd markers.
	Selective
)

func (m Mode) String() string {
	if m == Selective {
		return "selective"
	}
	return "full"
}

// ParseMode accepts "full" or "selective" in any case.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "full", "":
		return Full, nil
	case "selective":
		return Selective, nil
	}
	return Full, erruser.Codedf(erruser.CodeInvalidMode, nil, "Invalid mode %q; use full or selective.", s)
}

// Options configures a pass. The zero value is Full mode with no
// preformatted tags; use DefaultOptions for the built-in tag list.
type Options struct {
	Mode         Mode
	Preformatted tagscan.TagSet
	// Collapse reduces whitespace runs that are kept (outside preformatted
	// regions, within the active mode) to a single space.
	Collapse bool
	Tracer   *trace.Tracer
}

// DefaultOptions returns Full mode with the default preformatted tags.
func DefaultOptions() Options {
	return Options{Mode: Full, Preformatted: tagscan.DefaultTagSet()}
}

// Compress returns doc with inter-tag whitespace removed.
func Compress(doc stream.Document, opts Options) stream.Document {
	out, _ := CompressReport(doc, opts)
	return out
}

// CompressReport is Compress plus a Report of what the pass did.
func CompressReport(doc stream.Document, opts Options) (stream.Document, Report) {
	p := newPass(doc, opts)
	p.run()
	return p.output(), p.rep
}

// segment is the part of a pending whitespace run that lives in one token.
type segment struct {
	tok, start, end int
	active          bool
}

type edit struct {
	start, end int
	repl       string
}

type pass struct {
	opts  Options
	doc   stream.Document
	edits map[int][]edit
	rep   Report

	scan   tagscan.Scanner
	pre    bool
	closer tagscan.CloseMatcher
	preTok int

	// afterClose is true while the nearest content to the left, skipping
	// placeholders and whitespace, is the '>' of a classified tag.
	afterClose  bool
	pending     []segment
	pendingLeft bool
	depth       int

	// attrStart..attrEnd is a whitespace run inside a tag in the current
	// token; attrEnd is 0 when there is none.
	attrStart, attrEnd int
}

func newPass(doc stream.Document, opts Options) *pass {
	return &pass{
		opts:  opts,
		doc:   doc,
		edits: make(map[int][]edit),
		rep:   Report{Tokens: len(doc.Tokens), TextBytesIn: doc.TextLen()},
	}
}

func (p *pass) run() {
	p.opts.Tracer.Section(p.doc.Name)
	for i, t := range p.doc.Tokens {
		switch t.Kind {
		case stream.Text:
			p.text(i, t.Value)
		case stream.Placeholder:
			p.placeholder(i)
		case stream.StripStart:
			p.depth++
		case stream.StripEnd:
			if p.depth == 0 {
				p.notice(NoticeUnbalancedStripEnd, i, "")
				continue
			}
			p.depth--
		}
	}
	p.resolve(false)
	if p.pre {
		p.notice(NoticeUnmatchedPreformattedOpen, p.preTok, p.closer.Name())
	}
}

func (p *pass) active() bool {
	return p.opts.Mode == Full || p.depth > 0
}

func (p *pass) text(i int, v string) {
	active := p.active()
	for j := 0; j < len(v); j++ {
		c := v[j]
		if p.pre {
			if !p.closer.Feed(c) {
				continue
			}
			// The region ends at the closing tag, not the token: the rest
			// of this run is compressed like any other text.
			p.pre = false
			p.scan.ResumeClosing(p.closer.Name())
			p.opts.Tracer.Decision(i, "preformatted-end", p.closer.Name())
		}
		inAttrs := p.scan.InAttrs()
		ev := p.scan.Step(c)
		if p.opts.Collapse && active && inAttrs && tagscan.IsSpace(c) {
			if p.attrEnd != j {
				p.flushAttrs(i, v)
				p.attrStart = j
			}
			p.attrEnd = j + 1
			continue
		}
		p.flushAttrs(i, v)
		if ev.Has(tagscan.EvNotTag) {
			p.resolve(false)
			p.afterClose = false
		}
		switch {
		case ev.Has(tagscan.EvSpace):
			p.extend(i, j, active)
		case ev.Has(tagscan.EvText):
			p.resolve(false)
			p.afterClose = false
		case ev.Has(tagscan.EvTagStart):
			p.resolve(true)
			p.afterClose = false
		case ev.Has(tagscan.EvTagEnd):
			p.tagEnd(i)
		}
	}
	p.flushAttrs(i, v)
}

// flushAttrs collapses the pending whitespace run inside a tag of token i.
// Quoted attribute values are included: class="a    b" becomes class="a b".
func (p *pass) flushAttrs(i int, v string) {
	if p.attrEnd == 0 {
		return
	}
	ws := v[p.attrStart:p.attrEnd]
	if ws != " " {
		p.edits[i] = append(p.edits[i], edit{start: p.attrStart, end: p.attrEnd, repl: " "})
		p.opts.Tracer.Decision(i, "collapse-attr", ws)
		p.rep.RunsCollapsed++
	}
	p.attrStart, p.attrEnd = 0, 0
}

func (p *pass) placeholder(i int) {
	if p.pre {
		p.closer.Interrupt()
		return
	}
	if p.scan.Interrupt().Has(tagscan.EvUndecidable) {
		p.notice(NoticeAmbiguousTagBoundary, i, "")
		p.resolve(false)
		p.afterClose = false
	}
}

func (p *pass) tagEnd(i int) {
	p.afterClose = true
	r := p.scan.Last()
	if r.Kind == tagscan.Open && p.opts.Preformatted.Has(r.Name) {
		p.pre = true
		p.preTok = i
		p.closer = tagscan.NewCloseMatcher(r.Name)
		p.opts.Tracer.Decision(i, "preformatted-start", r.Name)
	}
}

// extend adds byte j of token i to the pending whitespace run.
func (p *pass) extend(i, j int, active bool) {
	if len(p.pending) == 0 {
		p.pendingLeft = p.afterClose
	}
	if n := len(p.pending); n > 0 {
		last := &p.pending[n-1]
		if last.tok == i && last.end == j && last.active == active {
			last.end++
			return
		}
	}
	p.pending = append(p.pending, segment{tok: i, start: j, end: j + 1, active: active})
}

// resolve settles the pending run once its right neighbour is known.
// tagOpen is true when that neighbour is a confirmed tag start.
func (p *pass) resolve(tagOpen bool) {
	if len(p.pending) == 0 {
		return
	}
	strip := tagOpen && p.pendingLeft
	counted := false
	for _, s := range p.pending {
		if !s.active {
			continue
		}
		ws := p.doc.Tokens[s.tok].Value[s.start:s.end]
		switch {
		case strip:
			p.edits[s.tok] = append(p.edits[s.tok], edit{start: s.start, end: s.end})
			p.opts.Tracer.Decision(s.tok, "strip", ws)
			if !counted {
				p.rep.RunsStripped++
				counted = true
			}
		case p.opts.Collapse && ws != " ":
			p.edits[s.tok] = append(p.edits[s.tok], edit{start: s.start, end: s.end, repl: " "})
			p.opts.Tracer.Decision(s.tok, "collapse", ws)
			if !counted {
				p.rep.RunsCollapsed++
				counted = true
			}
		}
	}
	p.pending = p.pending[:0]
}

func (p *pass) notice(kind NoticeKind, tok int, tag string) {
	line := 0
	if tok >= 0 && tok < len(p.doc.Tokens) {
		line = p.doc.Tokens[tok].Line
	}
	p.rep.Notices = append(p.rep.Notices, Notice{Kind: kind, Token: tok, Line: line, Tag: tag})
	p.opts.Tracer.Decision(tok, kind.String(), tag)
}

func (p *pass) output() stream.Document {
	out := stream.Document{Name: p.doc.Name, Tokens: make([]stream.Token, 0, len(p.doc.Tokens))}
	for i, t := range p.doc.Tokens {
		switch t.Kind {
		case stream.StripStart, stream.StripEnd:
			continue
		case stream.Text:
			if eds := p.edits[i]; len(eds) > 0 {
				t.Value = applyEdits(t.Value, eds)
			}
			p.rep.TextBytesOut += len(t.Value)
		}
		out.Tokens = append(out.Tokens, t)
	}
	return out
}

// applyEdits rewrites s; eds never overlap.
func applyEdits(s string, eds []edit) string {
	sort.Slice(eds, func(a, b int) bool { return eds[a].start < eds[b].start })
	var b strings.Builder
	b.Grow(len(s))
	pos := 0
	for _, e := range eds {
		b.WriteString(s[pos:e.start])
		b.WriteString(e.repl)
		pos = e.end
	}
	b.WriteString(s[pos:])
	return b.String()
}
