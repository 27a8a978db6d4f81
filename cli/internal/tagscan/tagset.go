package tagscan

import (
	"sort"
	"strings"

	"tagtrim/cli/internal/erruser"
)

// defaultPreformatted holds the tags whose content keeps its whitespace.
var defaultPreformatted = []string{"pre", "textarea", "script", "style", "noscript"}

// TagSet is an immutable, case-insensitive set of tag names. The zero value
// is an empty set.
type TagSet struct {
	names map[string]struct{}
}

// NewTagSet validates names and returns the set. Names must be non-empty
// and consist of ASCII letters only; anything else is a setup error.
func NewTagSet(names ...string) (TagSet, error) {
	m := make(map[string]struct{}, len(names))
	for _, n := range names {
		norm := strings.ToLower(strings.TrimSpace(n))
		if norm == "" {
			return TagSet{}, erruser.Coded(erruser.CodeInvalidTagName, "Preformatted tag names must not be empty.", nil)
		}
		for i := 0; i < len(norm); i++ {
			if !isLetter(norm[i]) {
				return TagSet{}, erruser.Codedf(erruser.CodeInvalidTagName, nil,
					"Invalid preformatted tag name %q; use ASCII letters only.", n)
			}
		}
		m[norm] = struct{}{}
	}
	return TagSet{names: m}, nil
}

// DefaultTagSet returns pre, textarea, script, style and noscript.
func DefaultTagSet() TagSet {
	s, _ := NewTagSet(defaultPreformatted...)
	return s
}

// DefaultNames returns a copy of the built-in preformatted tag list.
func DefaultNames() []string {
	return append([]string(nil), defaultPreformatted...)
}

// Has reports whether name (any case) is in the set.
func (s TagSet) Has(name string) bool {
	if len(s.names) == 0 {
		return false
	}
	_, ok := s.names[strings.ToLower(name)]
	return ok
}

// Len returns the number of names.
func (s TagSet) Len() int { return len(s.names) }

// Names returns the lowercase names in sorted order.
func (s TagSet) Names() []string {
	out := make([]string, 0, len(s.names))
	for n := range s.names {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
