package stream

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKind_ParseRoundTrip(t *testing.T) {
	for _, k := range []Kind{Text, Placeholder, StripStart, StripEnd} {
		got, ok := ParseKind(k.String())
		assert.True(t, ok, k.String())
		assert.Equal(t, k, got)
	}
	_, ok := ParseKind("comment")
	assert.False(t, ok)
	assert.Equal(t, "unknown", Kind(42).String())
}

func TestDocument_Source(t *testing.T) {
	d := New("t",
		TextRun("<div>"),
		Token{Kind: StripStart, Raw: "{% strip %}"},
		Opaque("{{ x }}"),
		Token{Kind: StripEnd, Raw: "{% endstrip %}"},
		TextRun("</div>"),
	)
	assert.Equal(t, "<div>{{ x }}</div>", d.Source())
	assert.Equal(t, len("<div></div>"), d.TextLen())
}

func TestDocument_Equal(t *testing.T) {
	a := New("a", TextRun("<p>"), Opaque("X"))
	b := New("b", Token{Kind: Text, Value: "<p>", Line: 4}, Opaque("X"))
	assert.True(t, a.Equal(b))
	assert.False(t, a.Equal(New("a", TextRun("<p>"))))
	assert.False(t, a.Equal(New("a", TextRun("<p>"), Opaque("Y"))))
	assert.False(t, a.Equal(New("a", Opaque("<p>"), Opaque("X"))))
}
