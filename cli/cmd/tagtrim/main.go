package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"tagtrim/cli/internal/config"
	"tagtrim/cli/internal/erruser"
	"tagtrim/cli/internal/lexer"
	"tagtrim/cli/internal/logging"
	"tagtrim/cli/internal/metrics"
	"tagtrim/cli/internal/minify"
	"tagtrim/cli/internal/run"
	"tagtrim/cli/internal/stats"
	"tagtrim/cli/internal/tokenio"
	"tagtrim/cli/internal/trace"
	"tagtrim/cli/internal/version"
)

// errExit is an error that carries an exit code for the CLI. Use errors.As to detect it.
type errExit int

func (e errExit) Error() string {
	return "exit " + strconv.Itoa(int(e))
}

// Tests replace these to capture output and feed input.
var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
	stdin  io.Reader = os.Stdin
)

// stdinIsTerminal reports whether stdin is interactive, in which case a
// command with no file arguments has nothing to read.
var stdinIsTerminal = func() bool {
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

var (
	okColor   = color.New(color.FgGreen)
	warnColor = color.New(color.FgYellow)
	failColor = color.New(color.FgRed, color.Bold)
)

func main() {
	os.Exit(Run())
}

// Run is the entry point for the CLI.
func Run() int {
	return runCLI(os.Args[1:])
}

func runCLI(args []string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a := &app{}
	defer a.close()
	rootCmd := &cobra.Command{
		Use:               "tagtrim",
		Short:             "Strip inter-tag whitespace from templated markup",
		Version:           version.String(),
		PersistentPreRunE: a.setup,
	}
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase log verbosity (-v info, -vv debug, -vvv trace)")
	rootCmd.PersistentFlags().String("config", "", "Global config file (default $XDG_CONFIG_HOME/tagtrim/config.toml)")
	rootCmd.PersistentFlags().String("log-file", "", "Also write JSON logs to this file")
	rootCmd.AddCommand(a.newCompressCmd())
	rootCmd.AddCommand(a.newCheckCmd())
	rootCmd.AddCommand(a.newTokensCmd())
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.SilenceUsage = true
	rootCmd.SilenceErrors = true
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		var exitErr errExit
		if errors.As(err, &exitErr) {
			return int(exitErr)
		}
		fmt.Fprintln(stderr, err)
		if u := errors.Unwrap(err); u != nil {
			fmt.Fprintf(stderr, "Details: %v\n", u)
		}
		return 1
	}
	return 0
}

// app carries state resolved once per invocation by the root pre-run hook.
type app struct {
	cfg       *config.Config
	verbosity int
	closeLog  func() error
}

func (a *app) close() {
	if a.closeLog != nil {
		_ = a.closeLog()
	}
}

func (a *app) setup(cmd *cobra.Command, _ []string) error {
	a.verbosity, _ = cmd.Flags().GetCount("verbose")
	globalPath, _ := cmd.Flags().GetString("config")
	cwd, err := os.Getwd()
	if err != nil {
		return erruser.New("Could not determine current directory.", err)
	}
	cfg, err := config.Load(cmd.Context(), config.LoadOptions{
		Dir:              cwd,
		GlobalConfigPath: globalPath,
		Overrides:        overridesFromFlags(cmd),
	})
	if err != nil {
		return err
	}
	a.cfg = cfg
	a.closeLog = logging.SetupLogger(a.verbosity, stderr, cfg.LogFile)
	return nil
}

func addCompressFlags(cmd *cobra.Command) {
	cmd.Flags().String("mode", "", "Compression mode: full or selective (overrides config and env)")
	cmd.Flags().StringSlice("pre", nil, "Preformatted tag names whose content is never touched (overrides config and env)")
	cmd.Flags().Bool("collapse", false, "Reduce kept whitespace runs to a single space")
	cmd.Flags().IntP("jobs", "j", 0, "Documents processed in parallel (0 = one per CPU)")
	cmd.Flags().String("input-format", run.FormatTemplate, "Input format: template, yaml or msgpack")
	cmd.Flags().String("metrics-file", "", "Write Prometheus metrics to this file after the run")
	cmd.Flags().Bool("trace", false, "Print every whitespace decision to stderr (forces --jobs=1)")
}

// overridesFromFlags returns Overrides for the flags that were set on cmd.
func overridesFromFlags(cmd *cobra.Command) *config.Overrides {
	changed := func(name string) bool {
		f := cmd.Flags().Lookup(name)
		return f != nil && f.Changed
	}
	o := &config.Overrides{}
	set := false
	if changed("mode") {
		v, _ := cmd.Flags().GetString("mode")
		o.Mode, set = &v, true
	}
	if changed("pre") {
		v, _ := cmd.Flags().GetStringSlice("pre")
		o.Preformatted, set = v, true
	}
	if changed("collapse") {
		v, _ := cmd.Flags().GetBool("collapse")
		o.Collapse, set = &v, true
	}
	if changed("jobs") {
		v, _ := cmd.Flags().GetInt("jobs")
		o.Jobs, set = &v, true
	}
	if changed("metrics-file") {
		v, _ := cmd.Flags().GetString("metrics-file")
		o.MetricsFile, set = &v, true
	}
	if changed("log-file") {
		v, _ := cmd.Flags().GetString("log-file")
		o.LogFile, set = &v, true
	}
	if !set {
		return nil
	}
	return o
}

// inputs returns the paths to process: args, or stdin when it is piped.
func inputs(args []string) ([]string, error) {
	if len(args) > 0 {
		return args, nil
	}
	if stdinIsTerminal() {
		return nil, errors.New("No input files; pass file paths or pipe a document on stdin.")
	}
	return []string{run.StdinPath}, nil
}

// runOptions builds the batch options shared by compress and check.
func (a *app) runOptions(cmd *cobra.Command, paths []string) (run.Options, *metrics.Recorder, error) {
	mopts, err := a.cfg.MinifyOptions()
	if err != nil {
		return run.Options{}, nil, err
	}
	if tr, _ := cmd.Flags().GetBool("trace"); tr {
		mopts.Tracer = trace.New(stderr)
	}
	var rec *metrics.Recorder
	if a.cfg.MetricsFile != "" {
		rec = metrics.New()
	}
	inFmt, _ := cmd.Flags().GetString("input-format")
	log := logging.GetLogger(cmd.Name())
	return run.Options{
		Paths:       paths,
		Stdin:       stdin,
		Stdout:      stdout,
		Jobs:        a.cfg.Jobs,
		Minify:      mopts,
		Syntax:      a.cfg.Syntax,
		InputFormat: inFmt,
		Metrics:     rec,
		Logger:      &log,
	}, rec, nil
}

func (a *app) newCompressCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compress [files...]",
		Short: "Compress documents to stdout, an output directory, or in place",
		Long: "Compress removes whitespace runs that sit between two tags. Text " +
			"content, preformatted regions and template expressions are left as they are. " +
			"With no files, the document is read from stdin.",
		RunE: a.runCompress,
	}
	addCompressFlags(cmd)
	cmd.Flags().StringP("out-dir", "o", "", "Write results under this directory instead of stdout")
	cmd.Flags().BoolP("in-place", "i", false, "Overwrite each input file with its result")
	cmd.Flags().String("output-format", run.FormatTemplate, "Output format: template, yaml or msgpack")
	return cmd
}

func (a *app) runCompress(cmd *cobra.Command, args []string) error {
	paths, err := inputs(args)
	if err != nil {
		return err
	}
	opts, rec, err := a.runOptions(cmd, paths)
	if err != nil {
		return err
	}
	opts.OutDir, _ = cmd.Flags().GetString("out-dir")
	opts.InPlace, _ = cmd.Flags().GetBool("in-place")
	opts.OutputFormat, _ = cmd.Flags().GetString("output-format")

	done := logging.LogOperationStart(logging.GetLogger("compress"), "compress")
	results, err := run.Files(cmd.Context(), opts)
	done()
	if err != nil {
		return err
	}
	if err := rec.WriteTextfile(a.cfg.MetricsFile); err != nil {
		return erruser.Coded(erruser.CodeIO, "Could not write metrics file.", err)
	}
	sum := stats.Summarize(results)
	for _, r := range results {
		if r.Error != "" {
			failColor.Fprintf(stderr, "%s: %s\n", r.Path, r.Error)
		}
	}
	if a.verbosity > 0 || opts.OutDir != "" || opts.InPlace {
		okColor.Fprintln(stderr, run.Summary(sum))
	}
	if sum.Failed > 0 {
		return errExit(1)
	}
	return nil
}

func (a *app) newCheckCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check [files...]",
		Short: "Report savings and notices without writing output; exits 1 on any notice",
		RunE:  a.runCheck,
	}
	addCompressFlags(cmd)
	return cmd
}

func (a *app) runCheck(cmd *cobra.Command, args []string) error {
	paths, err := inputs(args)
	if err != nil {
		return err
	}
	opts, rec, err := a.runOptions(cmd, paths)
	if err != nil {
		return err
	}
	opts.Check = true
	results, err := run.Files(cmd.Context(), opts)
	if err != nil {
		return err
	}
	if err := rec.WriteTextfile(a.cfg.MetricsFile); err != nil {
		return erruser.Coded(erruser.CodeIO, "Could not write metrics file.", err)
	}
	for _, r := range results {
		writeCheckLine(r)
	}
	sum := stats.Summarize(results)
	line := run.Summary(sum)
	if sum.Failed > 0 || sum.TotalNotices() > 0 {
		warnColor.Fprintln(stdout, line)
		return errExit(1)
	}
	okColor.Fprintln(stdout, line)
	return nil
}

func writeCheckLine(r stats.FileResult) {
	switch {
	case r.Error != "":
		failColor.Fprintf(stdout, "%s: error: %s\n", r.Path, r.Error)
	case r.NoticeCount() > 0:
		kinds := make([]string, 0, len(r.Notices))
		for k := range r.Notices {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)
		parts := make([]string, 0, len(kinds))
		for _, k := range kinds {
			parts = append(parts, fmt.Sprintf("%s=%d", k, r.Notices[k]))
		}
		warnColor.Fprintf(stdout, "%s: %d -> %d bytes, %s\n", r.Path, r.BytesIn, r.BytesOut, strings.Join(parts, " "))
	default:
		fmt.Fprintf(stdout, "%s: %d -> %d bytes\n", r.Path, r.BytesIn, r.BytesOut)
	}
}

func (a *app) newTokensCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tokens [file]",
		Short: "Lex a template and print its token stream",
		Args:  cobra.MaximumNArgs(1),
		RunE:  a.runTokens,
	}
	cmd.Flags().String("format", string(tokenio.FormatYAML), "Output format: yaml or msgpack")
	cmd.Flags().Bool("compressed", false, "Print the stream after compression")
	return cmd
}

func (a *app) runTokens(cmd *cobra.Command, args []string) error {
	paths, err := inputs(args)
	if err != nil {
		return err
	}
	format, _ := cmd.Flags().GetString("format")
	f, err := tokenio.ParseFormat(format)
	if err != nil {
		return err
	}
	path := paths[0]
	var src []byte
	if path == run.StdinPath {
		src, err = io.ReadAll(stdin)
	} else {
		src, err = os.ReadFile(path)
	}
	if err != nil {
		return erruser.Codedf(erruser.CodeIO, err, "Could not read %s.", path)
	}
	doc, err := lexer.Lex(path, string(src), a.cfg.Syntax)
	if err != nil {
		return err
	}
	if c, _ := cmd.Flags().GetBool("compressed"); c {
		mopts, err := a.cfg.MinifyOptions()
		if err != nil {
			return err
		}
		doc = minify.Compress(doc, mopts)
	}
	var buf bytes.Buffer
	if err := tokenio.Encode(&buf, doc, f); err != nil {
		return err
	}
	_, err = stdout.Write(buf.Bytes())
	return err
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the tagtrim version",
		Args:  cobra.NoArgs,
		// Version needs no configuration.
		PersistentPreRunE: func(*cobra.Command, []string) error { return nil },
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(stdout, version.Banner())
		},
	}
}
