// Package stats aggregates compression reports across a batch of documents
// for the check command and the end-of-run summary.
package stats

import (
	"sort"

	"tagtrim/cli/internal/minify"
)

// FileResult is the outcome of one document in a batch.
type FileResult struct {
	Path          string         `json:"path" yaml:"path"`
	Tokens        int            `json:"tokens" yaml:"tokens"`
	BytesIn       int            `json:"bytes_in" yaml:"bytes_in"`
	BytesOut      int            `json:"bytes_out" yaml:"bytes_out"`
	RunsStripped  int            `json:"runs_stripped" yaml:"runs_stripped"`
	RunsCollapsed int            `json:"runs_collapsed" yaml:"runs_collapsed"`
	Notices       map[string]int `json:"notices,omitempty" yaml:"notices,omitempty"`
	Error         string         `json:"error,omitempty" yaml:"error,omitempty"`
}

// FromReport builds a FileResult for path.
func FromReport(path string, r minify.Report) FileResult {
	fr := FileResult{
		Path:          path,
		Tokens:        r.Tokens,
		BytesIn:       r.TextBytesIn,
		BytesOut:      r.TextBytesOut,
		RunsStripped:  r.RunsStripped,
		RunsCollapsed: r.RunsCollapsed,
	}
	for _, n := range r.Notices {
		if fr.Notices == nil {
			fr.Notices = make(map[string]int)
		}
		fr.Notices[n.Kind.String()]++
	}
	return fr
}

// NoticeCount is the number of notices of any kind.
func (f FileResult) NoticeCount() int {
	n := 0
	for _, c := range f.Notices {
		n += c
	}
	return n
}

// Summary holds totals over a batch.
type Summary struct {
	Files         int            `json:"files" yaml:"files"`
	Failed        int            `json:"failed" yaml:"failed"`
	Tokens        int            `json:"tokens" yaml:"tokens"`
	BytesIn       int            `json:"bytes_in" yaml:"bytes_in"`
	BytesOut      int            `json:"bytes_out" yaml:"bytes_out"`
	RunsStripped  int            `json:"runs_stripped" yaml:"runs_stripped"`
	RunsCollapsed int            `json:"runs_collapsed" yaml:"runs_collapsed"`
	Notices       map[string]int `json:"notices,omitempty" yaml:"notices,omitempty"`
}

// Summarize totals results. Failed files count toward Files and Failed only.
func Summarize(results []FileResult) Summary {
	var s Summary
	for _, r := range results {
		s.Files++
		if r.Error != "" {
			s.Failed++
			continue
		}
		s.Tokens += r.Tokens
		s.BytesIn += r.BytesIn
		s.BytesOut += r.BytesOut
		s.RunsStripped += r.RunsStripped
		s.RunsCollapsed += r.RunsCollapsed
		for k, v := range r.Notices {
			if s.Notices == nil {
				s.Notices = make(map[string]int)
			}
			s.Notices[k] += v
		}
	}
	return s
}

// Saved is the number of text bytes removed.
func (s Summary) Saved() int { return s.BytesIn - s.BytesOut }

// Ratio is BytesOut/BytesIn, or 1 when there was no input.
func (s Summary) Ratio() float64 {
	if s.BytesIn == 0 {
		return 1
	}
	return float64(s.BytesOut) / float64(s.BytesIn)
}

// PercentSaved is the share of input text removed, 0..100.
func (s Summary) PercentSaved() float64 {
	return 100 * (1 - s.Ratio())
}

// NoticeKinds returns the notice kinds seen, sorted.
func (s Summary) NoticeKinds() []string {
	out := make([]string, 0, len(s.Notices))
	for k := range s.Notices {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// TotalNotices is the number of notices across all kinds.
func (s Summary) TotalNotices() int {
	n := 0
	for _, c := range s.Notices {
		n += c
	}
	return n
}
