// Package run compresses batches of documents: it reads each input (template
// source or an encoded token stream), runs one compression pass per
// document in parallel, and writes results in input order. Used by the CLI
// and by tests.
package run

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"tagtrim/cli/internal/erruser"
	"tagtrim/cli/internal/lexer"
	"tagtrim/cli/internal/logging"
	"tagtrim/cli/internal/metrics"
	"tagtrim/cli/internal/minify"
	"tagtrim/cli/internal/stats"
	"tagtrim/cli/internal/stream"
	"tagtrim/cli/internal/tokenio"
)

// StdinPath is the path that stands for standard input.
const StdinPath = "-"

// FormatTemplate means template source: lexed on input, rendered back to
// source on output.
const FormatTemplate = "template"

const tracerName = "tagtrim/run"

// Options configures Files.
type Options struct {
	// Paths are the inputs; StdinPath reads Stdin.
	Paths  []string
	Stdin  io.Reader
	Stdout io.Writer
	// OutDir receives outputs under the input's relative path (or base name
	// for absolute paths). Empty with InPlace false means Stdout.
	OutDir  string
	InPlace bool
	// Check computes reports without writing any output.
	Check bool
	// Jobs bounds concurrent documents; 0 means GOMAXPROCS.
	Jobs   int
	Minify minify.Options
	Syntax lexer.Syntax
	// InputFormat and OutputFormat are FormatTemplate (default) or a
	// tokenio format name.
	InputFormat  string
	OutputFormat string
	Metrics      *metrics.Recorder
	Logger       *zerolog.Logger
}

type fileOut struct {
	dest string
	data []byte
}

// Files processes opts.Paths and returns one result per path, in order.
// Per-file failures (unreadable input, syntax errors, write errors) are
// recorded in the result and do not stop the batch; only invalid options
// and cancellation return an error.
func Files(ctx context.Context, opts Options) ([]stats.FileResult, error) {
	if opts.InPlace && opts.OutDir != "" {
		return nil, erruser.Coded(erruser.CodeConfigValue, "--in-place and --out-dir are mutually exclusive.", nil)
	}
	inFmt, err := normalizeFormat(opts.InputFormat)
	if err != nil {
		return nil, err
	}
	outFmt, err := normalizeFormat(opts.OutputFormat)
	if err != nil {
		return nil, err
	}
	if opts.InPlace && inFmt != outFmt {
		return nil, erruser.Coded(erruser.CodeConfigValue, "--in-place requires the same input and output format.", nil)
	}
	log := logging.GetLogger("run")
	if opts.Logger != nil {
		log = *opts.Logger
	}
	if opts.Stdin == nil {
		opts.Stdin = os.Stdin
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}

	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}
	// Trace output has no per-file framing, so keep it sequential.
	if opts.Minify.Tracer.Enabled() {
		jobs = 1
	}
	n := len(opts.Paths)
	if n == 0 {
		return nil, nil
	}

	results := make([]stats.FileResult, n)
	outs := make([]fileOut, n)
	tracer := otel.Tracer(tracerName)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(jobs, n))
	for i, path := range opts.Paths {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}
			spanCtx, span := tracer.Start(gctx, "compress", trace.WithAttributes(attribute.String("tagtrim.path", path)))
			defer span.End()

			res, out, err := processOne(spanCtx, path, inFmt, outFmt, opts)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				opts.Metrics.ObserveFailure()
				log.Warn().Err(err).Str("path", path).Msg("Skipping document")
				results[i] = stats.FileResult{Path: path, Error: err.Error()}
				return nil
			}
			span.SetAttributes(
				attribute.Int("tagtrim.tokens", res.Tokens),
				attribute.Int("tagtrim.bytes_saved", res.BytesIn-res.BytesOut),
				attribute.Int("tagtrim.notices", res.NoticeCount()),
			)
			span.SetStatus(codes.Ok, "")
			log.Debug().Str("path", path).Int("tokens", res.Tokens).
				Int("bytes_in", res.BytesIn).Int("bytes_out", res.BytesOut).
				Int("notices", res.NoticeCount()).Msg("Compressed")
			results[i] = res
			outs[i] = out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if !opts.Check && !opts.InPlace && opts.OutDir == "" {
		for i, o := range outs {
			if results[i].Error != "" {
				continue
			}
			if _, err := opts.Stdout.Write(o.data); err != nil {
				return results, erruser.Coded(erruser.CodeIO, "Could not write output.", err)
			}
		}
	}
	return results, nil
}

// processOne reads, compresses and (for file destinations) writes one
// document. Stdout output is returned for ordered writing by the caller.
func processOne(ctx context.Context, path, inFmt, outFmt string, opts Options) (stats.FileResult, fileOut, error) {
	src, err := readInput(path, opts.Stdin)
	if err != nil {
		return stats.FileResult{}, fileOut{}, err
	}
	doc, err := decode(path, src, inFmt, opts.Syntax)
	if err != nil {
		return stats.FileResult{}, fileOut{}, err
	}
	if err := ctx.Err(); err != nil {
		return stats.FileResult{}, fileOut{}, err
	}

	start := time.Now()
	out, rep := minify.CompressReport(doc, opts.Minify)
	opts.Metrics.ObservePass(rep, time.Since(start))
	res := stats.FromReport(path, rep)
	if opts.Check {
		return res, fileOut{}, nil
	}

	data, err := encode(out, outFmt)
	if err != nil {
		return stats.FileResult{}, fileOut{}, err
	}
	dest := destination(path, opts)
	if dest == "" {
		return res, fileOut{data: data}, nil
	}
	if err := writeOutput(dest, path, data); err != nil {
		return stats.FileResult{}, fileOut{}, err
	}
	return res, fileOut{dest: dest}, nil
}

func normalizeFormat(s string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == FormatTemplate {
		return FormatTemplate, nil
	}
	f, err := tokenio.ParseFormat(s)
	if err != nil {
		return "", err
	}
	return string(f), nil
}

func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == StdinPath {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return nil, erruser.Coded(erruser.CodeIO, "Could not read standard input.", err)
		}
		return b, nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, erruser.Codedf(erruser.CodeIO, err, "Could not read %s.", path)
	}
	return b, nil
}

func decode(path string, src []byte, format string, syn lexer.Syntax) (stream.Document, error) {
	if format == FormatTemplate {
		return lexer.Lex(displayName(path), string(src), syn)
	}
	doc, err := tokenio.Decode(bytes.NewReader(src), tokenio.Format(format))
	if err != nil {
		return stream.Document{}, err
	}
	if doc.Name == "" {
		doc.Name = displayName(path)
	}
	return doc, nil
}

func encode(doc stream.Document, format string) ([]byte, error) {
	if format == FormatTemplate {
		return []byte(doc.Source()), nil
	}
	var buf bytes.Buffer
	if err := tokenio.Encode(&buf, doc, tokenio.Format(format)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func displayName(path string) string {
	if path == StdinPath {
		return "<stdin>"
	}
	return path
}

// destination returns where output for path goes; empty means Stdout.
func destination(path string, opts Options) string {
	switch {
	case path == StdinPath:
		return ""
	case opts.InPlace:
		return path
	case opts.OutDir != "":
		rel := filepath.Clean(path)
		if !filepath.IsLocal(rel) {
			rel = filepath.Base(rel)
		}
		return filepath.Join(opts.OutDir, rel)
	}
	return ""
}

// writeOutput writes data to dest via a temp file and rename, keeping the
// source file's permissions.
func writeOutput(dest, src string, data []byte) error {
	mode := os.FileMode(0o644)
	if fi, err := os.Stat(src); err == nil {
		mode = fi.Mode().Perm()
	}
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return erruser.Codedf(erruser.CodeIO, err, "Could not create %s.", filepath.Dir(dest))
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".*")
	if err != nil {
		return erruser.Codedf(erruser.CodeIO, err, "Could not write %s.", dest)
	}
	name := tmp.Name()
	_, werr := tmp.Write(data)
	cerr := tmp.Close()
	if werr == nil {
		werr = cerr
	}
	if werr == nil {
		werr = os.Chmod(name, mode)
	}
	if werr == nil {
		werr = os.Rename(name, dest)
	}
	if werr != nil {
		_ = os.Remove(name)
		return erruser.Codedf(erruser.CodeIO, werr, "Could not write %s.", dest)
	}
	return nil
}

// Summary formats one line per batch for the CLI.
func Summary(s stats.Summary) string {
	return fmt.Sprintf("%d file(s), %d failed, %d -> %d text bytes (%.1f%% saved), %d notice(s)",
		s.Files, s.Failed, s.BytesIn, s.BytesOut, s.PercentSaved(), s.TotalNotices())
}
