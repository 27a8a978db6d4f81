package run

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tagtrim/cli/internal/erruser"
	"tagtrim/cli/internal/lexer"
	"tagtrim/cli/internal/metrics"
	"tagtrim/cli/internal/minify"
	"tagtrim/cli/internal/stats"
	"tagtrim/cli/internal/stream"
	"tagtrim/cli/internal/tokenio"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

func baseOptions() Options {
	nop := zerolog.Nop()
	return Options{
		Minify: minify.DefaultOptions(),
		Syntax: lexer.DefaultSyntax(),
		Logger: &nop,
	}
}

func TestFiles_StdoutInOrder(t *testing.T) {
	dir := t.TempDir()
	var paths []string
	for i := 0; i < 12; i++ {
		p := filepath.Join(dir, fmt.Sprintf("f%02d.html", i))
		writeFile(t, p, fmt.Sprintf("<p>   <b>%d</b>   </p>\n", i))
		paths = append(paths, p)
	}
	var out bytes.Buffer
	opts := baseOptions()
	opts.Paths = paths
	opts.Stdout = &out
	opts.Jobs = 4

	res, err := Files(context.Background(), opts)
	require.NoError(t, err)
	require.Len(t, res, 12)

	var want strings.Builder
	for i := 0; i < 12; i++ {
		fmt.Fprintf(&want, "<p><b>%d</b></p>\n", i)
		assert.Equal(t, paths[i], res[i].Path)
		assert.Empty(t, res[i].Error)
	}
	assert.Equal(t, want.String(), out.String())
}

func TestFiles_Template(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "page.html")
	writeFile(t, p, "<ul>\n  {% for x in xs %}\n  <li>{{ x }}</li>\n  {% endfor %}\n</ul>\n<pre>  keep  </pre>")

	var out bytes.Buffer
	opts := baseOptions()
	opts.Paths = []string{p}
	opts.Stdout = &out
	res, err := Files(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, "<ul>{% for x in xs %}<li>{{ x }}</li>{% endfor %}</ul><pre>  keep  </pre>", out.String())
	assert.Greater(t, res[0].BytesIn, res[0].BytesOut)
}

func TestFiles_Stdin(t *testing.T) {
	var out bytes.Buffer
	opts := baseOptions()
	opts.Paths = []string{StdinPath}
	opts.Stdin = strings.NewReader("<div>   </div>")
	opts.Stdout = &out
	res, err := Files(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, "<div></div>", out.String())
	assert.Equal(t, StdinPath, res[0].Path)
}

func TestFiles_OutDir(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	p := filepath.Join(src, "a.html")
	writeFile(t, p, "<a>  </a>")

	opts := baseOptions()
	opts.Paths = []string{p}
	opts.OutDir = dst
	var out bytes.Buffer
	opts.Stdout = &out
	_, err := Files(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, "<a></a>", readFile(t, filepath.Join(dst, "a.html")))
	assert.Equal(t, "<a>  </a>", readFile(t, p))
	assert.Empty(t, out.String())
}

func TestFiles_InPlaceKeepsMode(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "a.html")
	writeFile(t, p, "<a>  </a>")
	require.NoError(t, os.Chmod(p, 0o600))

	opts := baseOptions()
	opts.Paths = []string{p}
	opts.InPlace = true
	_, err := Files(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, "<a></a>", readFile(t, p))
	fi, err := os.Stat(p)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), fi.Mode().Perm())
}

func TestFiles_CheckWritesNothing(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "a.html")
	writeFile(t, p, "<{{ t }}>  </b>")

	var out bytes.Buffer
	opts := baseOptions()
	opts.Paths = []string{p}
	opts.Check = true
	opts.Stdout = &out
	res, err := Files(context.Background(), opts)
	require.NoError(t, err)
	assert.Empty(t, out.String())
	assert.Equal(t, 1, res[0].Notices[minify.NoticeAmbiguousTagBoundary.String()])
}

func TestFiles_FailuresDoNotStopBatch(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.html")
	bad := filepath.Join(dir, "bad.html")
	writeFile(t, good, "<i> </i>")
	writeFile(t, bad, "<p>{{ oops")
	missing := filepath.Join(dir, "missing.html")

	rec := metrics.New()
	var out bytes.Buffer
	opts := baseOptions()
	opts.Paths = []string{bad, good, missing}
	opts.Stdout = &out
	opts.Metrics = rec
	res, err := Files(context.Background(), opts)
	require.NoError(t, err)
	require.Len(t, res, 3)
	assert.Contains(t, res[0].Error, "unterminated expression")
	assert.Empty(t, res[1].Error)
	assert.Contains(t, res[2].Error, "Could not read")
	assert.Equal(t, "<i></i>", out.String())

	s := stats.Summarize(res)
	assert.Equal(t, 3, s.Files)
	assert.Equal(t, 2, s.Failed)
}

func TestFiles_TokenStreams(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "doc.yaml")
	doc := stream.New("doc",
		stream.TextRun("<div>   "),
		stream.Opaque("{{ x }}"),
		stream.TextRun("   </div>"),
	)
	var buf bytes.Buffer
	require.NoError(t, tokenio.Encode(&buf, doc, tokenio.FormatYAML))
	writeFile(t, p, buf.String())

	var out bytes.Buffer
	opts := baseOptions()
	opts.Paths = []string{p}
	opts.InputFormat = "yaml"
	opts.OutputFormat = "msgpack"
	opts.Stdout = &out
	_, err := Files(context.Background(), opts)
	require.NoError(t, err)

	got, err := tokenio.Decode(&out, tokenio.FormatMsgpack)
	require.NoError(t, err)
	want := stream.New("doc", stream.TextRun("<div>"), stream.Opaque("{{ x }}"), stream.TextRun("</div>"))
	assert.True(t, want.Equal(got), "got %+v", got.Tokens)
}

func TestFiles_InvalidOptions(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*Options)
		code erruser.Code
	}{
		{"in-place with out-dir", func(o *Options) { o.InPlace = true; o.OutDir = "x" }, erruser.CodeConfigValue},
		{"unknown input format", func(o *Options) { o.InputFormat = "json" }, erruser.CodeCodec},
		{"in-place across formats", func(o *Options) { o.InPlace = true; o.OutputFormat = "yaml" }, erruser.CodeConfigValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := baseOptions()
			opts.Paths = []string{"a.html"}
			tt.mod(&opts)
			_, err := Files(context.Background(), opts)
			require.Error(t, err)
			assert.Equal(t, tt.code, erruser.CodeOf(err))
		})
	}
}

func TestFiles_Canceled(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "a.html")
	writeFile(t, p, "<a> </a>")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	opts := baseOptions()
	opts.Paths = []string{p}
	opts.Stdout = &bytes.Buffer{}
	_, err := Files(ctx, opts)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFiles_Empty(t *testing.T) {
	res, err := Files(context.Background(), baseOptions())
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestDestination(t *testing.T) {
	assert.Equal(t, "", destination(StdinPath, Options{InPlace: true}))
	assert.Equal(t, "a/b.html", destination("a/b.html", Options{InPlace: true}))
	assert.Equal(t, filepath.Join("out", "a", "b.html"), destination("a/b.html", Options{OutDir: "out"}))
	assert.Equal(t, filepath.Join("out", "b.html"), destination("/abs/b.html", Options{OutDir: "out"}))
	assert.Equal(t, filepath.Join("out", "b.html"), destination("../b.html", Options{OutDir: "out"}))
	assert.Equal(t, "", destination("a.html", Options{}))
}

func TestSummary(t *testing.T) {
	s := stats.Summary{Files: 2, BytesIn: 200, BytesOut: 150, Notices: map[string]int{"x": 1}}
	assert.Equal(t, "2 file(s), 0 failed, 200 -> 150 text bytes (25.0% saved), 1 notice(s)", Summary(s))
}
