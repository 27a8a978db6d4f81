package metrics

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tagtrim/cli/internal/minify"
)

func TestRecorder_ObservePass(t *testing.T) {
	r := New()
	rep := minify.Report{
		Tokens:       4,
		TextBytesIn:  20,
		TextBytesOut: 12,
		RunsStripped: 2,
		Notices: []minify.Notice{
			{Kind: minify.NoticeAmbiguousTagBoundary},
			{Kind: minify.NoticeAmbiguousTagBoundary},
		},
	}
	r.ObservePass(rep, 2*time.Millisecond)
	r.ObservePass(minify.Report{Tokens: 1, TextBytesIn: 3, TextBytesOut: 3}, time.Millisecond)
	r.ObserveFailure()

	assert.Equal(t, 2.0, gathered(t, r, "tagtrim_files_total", "ok"))
	assert.Equal(t, 1.0, gathered(t, r, "tagtrim_files_total", "error"))
	assert.Equal(t, 5.0, gathered(t, r, "tagtrim_tokens_total", ""))
	assert.Equal(t, 23.0, gathered(t, r, "tagtrim_text_bytes_in_total", ""))
	assert.Equal(t, 15.0, gathered(t, r, "tagtrim_text_bytes_out_total", ""))
	assert.Equal(t, 2.0, gathered(t, r, "tagtrim_runs_stripped_total", ""))
	assert.Equal(t, 2.0, gathered(t, r, "tagtrim_notices_total", "ambiguous-tag-boundary"))
	assert.Equal(t, 2.0, gathered(t, r, "tagtrim_pass_duration_seconds", ""))
}

// gathered returns a counter value, or a histogram's sample count, for
// the series of name whose single label has value label ("" for none).
func gathered(t *testing.T, r *Recorder, name, label string) float64 {
	t.Helper()
	mfs, err := r.Registry().Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			if label != "" && (len(m.GetLabel()) != 1 || m.GetLabel()[0].GetValue() != label) {
				continue
			}
			if h := m.GetHistogram(); h != nil {
				return float64(h.GetSampleCount())
			}
			return m.GetCounter().GetValue()
		}
	}
	t.Fatalf("metric %s{%s} not found", name, label)
	return 0
}

func TestRecorder_Options(t *testing.T) {
	r := New(WithNamespace("tt"), WithConstLabels(prometheus.Labels{"job": "ci"}), WithBuckets([]float64{1}))
	r.ObservePass(minify.Report{}, 0)
	mfs, err := r.Registry().Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(mfs))
	for _, mf := range mfs {
		names = append(names, mf.GetName())
		for _, m := range mf.GetMetric() {
			require.NotEmpty(t, m.GetLabel())
			assert.Equal(t, "job", m.GetLabel()[0].GetName())
		}
	}
	assert.Contains(t, names, "tt_files_total")
	assert.Contains(t, names, "tt_pass_duration_seconds")
}

func TestRecorder_WriteTextfile(t *testing.T) {
	r := New()
	r.ObservePass(minify.Report{Tokens: 2, TextBytesIn: 8, TextBytesOut: 4}, time.Millisecond)
	path := filepath.Join(t.TempDir(), "tagtrim.prom")
	require.NoError(t, r.WriteTextfile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `tagtrim_files_total{status="ok"} 1`)
	assert.Contains(t, string(data), "tagtrim_text_bytes_out_total 4")
}

func TestRecorder_Nil(t *testing.T) {
	var r *Recorder
	r.ObservePass(minify.Report{Tokens: 1}, time.Second)
	r.ObserveFailure()
	require.NoError(t, r.WriteTextfile("/nonexistent/dir/file.prom"))
	mfs, err := r.Registry().Gather()
	require.NoError(t, err)
	assert.Empty(t, mfs)
}
