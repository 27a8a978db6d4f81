package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cliResult struct {
	code   int
	stdout string
	stderr string
}

// execCLI runs the CLI with piped input and captured output. The global
// config is pointed at a missing file so the host's config never leaks in.
func execCLI(t *testing.T, input string, args ...string) cliResult {
	t.Helper()
	for _, k := range []string{"TAGTRIM_MODE", "TAGTRIM_PREFORMATTED", "TAGTRIM_COLLAPSE", "TAGTRIM_JOBS", "TAGTRIM_METRICS_FILE", "TAGTRIM_LOG_FILE"} {
		t.Setenv(k, "")
	}
	var out, errb bytes.Buffer
	savedOut, savedErr, savedIn, savedTTY, savedNoColor := stdout, stderr, stdin, stdinIsTerminal, color.NoColor
	t.Cleanup(func() {
		stdout, stderr, stdin, stdinIsTerminal, color.NoColor = savedOut, savedErr, savedIn, savedTTY, savedNoColor
	})
	stdout, stderr = &out, &errb
	color.NoColor = true
	if input == "" {
		stdin = strings.NewReader("")
		stdinIsTerminal = func() bool { return true }
	} else {
		stdin = strings.NewReader(input)
		stdinIsTerminal = func() bool { return false }
	}
	missing := filepath.Join(t.TempDir(), "none.toml")
	if len(args) > 0 {
		args = append([]string{"--config", missing}, args...)
	} else {
		// nil would make cobra fall back to os.Args
		args = []string{}
	}
	code := runCLI(args)
	return cliResult{code: code, stdout: out.String(), stderr: errb.String()}
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestRunCLI_Help(t *testing.T) {
	r := execCLI(t, "")
	assert.Equal(t, 0, r.code)
	r = execCLI(t, "", "--help")
	assert.Equal(t, 0, r.code, r.stderr)
	assert.Contains(t, r.stdout, "compress")

	r = execCLI(t, "", "compress", "--help")
	assert.Equal(t, 0, r.code, r.stderr)
	assert.Contains(t, r.stdout, "--in-place")
}

func TestCompress_Stdin(t *testing.T) {
	r := execCLI(t, "<div>   \n  <p>hi</p>\n</div>", "compress")
	require.Equal(t, 0, r.code, r.stderr)
	assert.Equal(t, "<div><p>hi</p></div>", r.stdout)
}

func TestCompress_NoInput(t *testing.T) {
	r := execCLI(t, "", "compress")
	assert.Equal(t, 1, r.code)
	assert.Contains(t, r.stderr, "No input files")
}

func TestCompress_Flags(t *testing.T) {
	tests := []struct {
		name  string
		input string
		args  []string
		want  string
	}{
		{"selective mode", "<a> </a>{% strip %}<b> </b>{% endstrip %}", []string{"--mode", "selective"}, "<a> </a><b></b>"},
		{"custom preformatted", "<code> <b> </b> </code><i> </i>", []string{"--pre", "code"}, "<code> <b> </b> </code><i></i>"},
		{"collapse", "<p>a   b</p>   <p>c</p>", []string{"--collapse"}, "<p>a b</p><p>c</p>"},
		{"text between expressions kept", "<p>{{ a }} and {{ b }}</p>", nil, "<p>{{ a }} and {{ b }}</p>"},
		{"expressions between tags", "<ul>\n  {{ items }}\n</ul>", nil, "<ul>{{ items }}</ul>"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := execCLI(t, tt.input, append([]string{"compress"}, tt.args...)...)
			require.Equal(t, 0, r.code, r.stderr)
			assert.Equal(t, tt.want, r.stdout)
		})
	}
}

func TestCompress_OutDirAndMetrics(t *testing.T) {
	src := t.TempDir()
	dst := t.TempDir()
	p := writeFile(t, src, "a.html", "<ul>\n  <li>x</li>\n</ul>\n")
	prom := filepath.Join(t.TempDir(), "tagtrim.prom")

	r := execCLI(t, "", "compress", "-o", dst, "--metrics-file", prom, p)
	require.Equal(t, 0, r.code, r.stderr)
	assert.Empty(t, r.stdout)
	assert.Contains(t, r.stderr, "1 file(s), 0 failed")

	got, err := os.ReadFile(filepath.Join(dst, "a.html"))
	require.NoError(t, err)
	assert.Equal(t, "<ul><li>x</li></ul>\n", string(got))

	data, err := os.ReadFile(prom)
	require.NoError(t, err)
	assert.Contains(t, string(data), `tagtrim_files_total{status="ok"} 1`)
}

func TestCompress_FailedFile(t *testing.T) {
	dir := t.TempDir()
	p := writeFile(t, dir, "bad.html", "<p>{% if x")
	r := execCLI(t, "", "compress", p)
	assert.Equal(t, 1, r.code)
	assert.Contains(t, r.stderr, "unterminated block")
}

func TestCompress_InvalidMode(t *testing.T) {
	r := execCLI(t, "<a> </a>", "compress", "--mode", "loose")
	assert.Equal(t, 1, r.code)
	assert.Contains(t, r.stderr, `Invalid mode "loose"`)
}

func TestCheck(t *testing.T) {
	dir := t.TempDir()
	clean := writeFile(t, dir, "clean.html", "<a>  </a>")
	r := execCLI(t, "", "check", clean)
	require.Equal(t, 0, r.code, r.stderr)
	assert.Contains(t, r.stdout, "clean.html: 9 -> 7 bytes")

	split := writeFile(t, dir, "split.html", "<{{ tag }}>  </b>")
	r = execCLI(t, "", "check", clean, split)
	assert.Equal(t, 1, r.code)
	assert.Contains(t, r.stdout, "ambiguous-tag-boundary=1")
	assert.Contains(t, r.stdout, "2 file(s), 0 failed")

	// check never writes the documents themselves
	got, err := os.ReadFile(clean)
	require.NoError(t, err)
	assert.Equal(t, "<a>  </a>", string(got))
}

func TestTokens(t *testing.T) {
	r := execCLI(t, "<p>{{ x }}</p>", "tokens")
	require.Equal(t, 0, r.code, r.stderr)
	assert.Contains(t, r.stdout, "kind: placeholder")
	assert.Contains(t, r.stdout, "{{ x }}")

	r = execCLI(t, "<p> </p>", "tokens", "--compressed")
	require.Equal(t, 0, r.code, r.stderr)
	assert.Contains(t, r.stdout, "<p></p>")
	assert.NotContains(t, r.stdout, "<p> </p>")

	r = execCLI(t, "<p></p>", "tokens", "--format", "xml")
	assert.Equal(t, 1, r.code)
}

func TestVersion(t *testing.T) {
	r := execCLI(t, "", "version")
	require.Equal(t, 0, r.code)
	assert.True(t, strings.HasPrefix(r.stdout, "tagtrim "))
}

func TestInputs(t *testing.T) {
	saved := stdinIsTerminal
	defer func() { stdinIsTerminal = saved }()

	got, err := inputs([]string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got)

	stdinIsTerminal = func() bool { return false }
	got, err = inputs(nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"-"}, got)

	stdinIsTerminal = func() bool { return true }
	_, err = inputs(nil)
	assert.Error(t, err)
}
