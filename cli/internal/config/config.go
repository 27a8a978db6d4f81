// Package config provides tagtrim configuration with a defined load order:
// CLI flags > environment variables > project config > global config > defaults.
//
// Paths:
//   - Project: .tagtrim.toml in the working (or given) directory
//   - Global: $XDG_CONFIG_HOME/tagtrim/config.toml (resolved with adrg/xdg)
//
// Environment variables (override config files when set):
//   - TAGTRIM_MODE (full or selective)
//   - TAGTRIM_PREFORMATTED (comma-separated tag names, e.g. pre,textarea,code)
//   - TAGTRIM_COLLAPSE (1/true/yes/on = true, 0/false/no/off = false)
//   - TAGTRIM_JOBS (non-negative integer; 0 = one per CPU)
//   - TAGTRIM_METRICS_FILE, TAGTRIM_LOG_FILE
//
// Preformatted tag names are validated here, at setup time, so no
// compression pass ever sees an invalid set.
package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"fortio.org/safecast"
	"github.com/BurntSushi/toml"
	"github.com/adrg/xdg"

	"tagtrim/cli/internal/erruser"
	"tagtrim/cli/internal/lexer"
	"tagtrim/cli/internal/minify"
	"tagtrim/cli/internal/tagscan"
)

// ProjectFile is the per-directory config file name.
const ProjectFile = ".tagtrim.toml"

// Config holds all tagtrim configuration.
type Config struct {
	Mode         string   `toml:"mode"`
	Preformatted []string `toml:"preformatted"`
	// Collapse reduces kept whitespace runs to one space.
	Collapse bool `toml:"collapse"`
	// Jobs bounds concurrent files in a batch (0 = GOMAXPROCS).
	Jobs        int          `toml:"jobs"`
	MetricsFile string       `toml:"metrics_file"` // Prometheus textfile written after a batch.
	LogFile     string       `toml:"log_file"`
	Syntax      lexer.Syntax `toml:"syntax"`
}

// Overrides represents optional CLI flag overrides. Non-nil pointer means
// "override with this value".
type Overrides struct {
	Mode         *string
	Preformatted []string
	Collapse     *bool
	Jobs         *int
	MetricsFile  *string
	LogFile      *string
}

// LoadOptions configures Load. All fields are optional.
type LoadOptions struct {
	// Dir is where the project config is looked up; empty means no project config.
	Dir string
	// GlobalConfigPath is the global config file path; if empty, the XDG path is used.
	GlobalConfigPath string
	// Env is the environment key=value slice; if nil, os.Environ() is used.
	Env []string
	// Overrides are applied last (highest precedence).
	Overrides *Overrides
}

const _defaultMode = "full"

// DefaultConfig returns the default configuration (no I/O).
func DefaultConfig() Config {
	return Config{
		Mode:         _defaultMode,
		Preformatted: tagscan.DefaultNames(),
		Collapse:     false,
		Jobs:         0,
		Syntax:       lexer.DefaultSyntax(),
	}
}

// GlobalPath returns the XDG location of the global config file.
func GlobalPath() string {
	return filepath.Join(xdg.ConfigHome, "tagtrim", "config.toml")
}

// Load loads configuration with precedence: defaults < global file < project file < env < overrides.
// Missing config files are ignored. Invalid TOML, invalid env values, or an
// invalid final configuration return an error.
func Load(ctx context.Context, opts LoadOptions) (*Config, error) {
	if opts.Env == nil {
		opts.Env = os.Environ()
	}
	cfg := DefaultConfig()

	globalPath := opts.GlobalConfigPath
	if globalPath == "" {
		globalPath = GlobalPath()
	}
	if err := mergeFile(&cfg, globalPath); err != nil {
		return nil, err
	}

	if opts.Dir != "" {
		if err := mergeFile(&cfg, filepath.Join(opts.Dir, ProjectFile)); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(&cfg, opts.Env); err != nil {
		return nil, err
	}

	applyOverrides(&cfg, opts.Overrides)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks every setting a compression pass depends on.
func (c Config) Validate() error {
	if _, err := minify.ParseMode(c.Mode); err != nil {
		return err
	}
	if _, err := tagscan.NewTagSet(c.Preformatted...); err != nil {
		return err
	}
	if c.Jobs < 0 {
		return erruser.Coded(erruser.CodeConfigValue, "jobs must be non-negative.", nil)
	}
	return c.Syntax.Validate()
}

// MinifyOptions converts the configuration into compressor options.
func (c Config) MinifyOptions() (minify.Options, error) {
	mode, err := minify.ParseMode(c.Mode)
	if err != nil {
		return minify.Options{}, err
	}
	set, err := tagscan.NewTagSet(c.Preformatted...)
	if err != nil {
		return minify.Options{}, err
	}
	return minify.Options{Mode: mode, Preformatted: set, Collapse: c.Collapse}, nil
}

// mergeFile reads path and merges into cfg. Only overwrites fields that are
// present in the file. Missing file is skipped (no error).
func mergeFile(cfg *Config, path string) error {
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return erruser.Coded(erruser.CodeConfigParse, "Invalid configuration file.", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return erruser.Coded(erruser.CodeConfigParse, "Could not read configuration file.", err)
	}
	var file struct {
		Mode         *string   `toml:"mode"`
		Preformatted *[]string `toml:"preformatted"`
		Collapse     *bool     `toml:"collapse"`
		Jobs         *int64    `toml:"jobs"`
		MetricsFile  *string   `toml:"metrics_file"`
		LogFile      *string   `toml:"log_file"`
		Syntax       struct {
			BlockStart   *string `toml:"block_start"`
			BlockEnd     *string `toml:"block_end"`
			VarStart     *string `toml:"variable_start"`
			VarEnd       *string `toml:"variable_end"`
			CommentStart *string `toml:"comment_start"`
			CommentEnd   *string `toml:"comment_end"`
		} `toml:"syntax"`
	}
	if _, err := toml.Decode(string(data), &file); err != nil {
		return erruser.Codedf(erruser.CodeConfigParse, err, "Invalid configuration in %s.", filepath.Base(path))
	}
	if file.Mode != nil && *file.Mode != "" {
		cfg.Mode = strings.ToLower(strings.TrimSpace(*file.Mode))
	}
	if file.Preformatted != nil {
		cfg.Preformatted = append([]string(nil), (*file.Preformatted)...)
	}
	if file.Collapse != nil {
		cfg.Collapse = *file.Collapse
	}
	if file.Jobs != nil {
		v, err := safecast.Conv[int](*file.Jobs)
		if err != nil {
			return erruser.Coded(erruser.CodeConfigValue, "Configuration jobs value out of range.", err)
		}
		cfg.Jobs = v
	}
	if file.MetricsFile != nil {
		cfg.MetricsFile = *file.MetricsFile
	}
	if file.LogFile != nil {
		cfg.LogFile = *file.LogFile
	}
	s := file.Syntax
	for _, f := range []struct {
		src *string
		dst *string
	}{
		{s.BlockStart, &cfg.Syntax.BlockStart},
		{s.BlockEnd, &cfg.Syntax.BlockEnd},
		{s.VarStart, &cfg.Syntax.VarStart},
		{s.VarEnd, &cfg.Syntax.VarEnd},
		{s.CommentStart, &cfg.Syntax.CommentStart},
		{s.CommentEnd, &cfg.Syntax.CommentEnd},
	} {
		if f.src != nil && *f.src != "" {
			*f.dst = *f.src
		}
	}
	return nil
}

// env key names for config
const (
	envMode         = "TAGTRIM_MODE"
	envPreformatted = "TAGTRIM_PREFORMATTED"
	envCollapse     = "TAGTRIM_COLLAPSE"
	envJobs         = "TAGTRIM_JOBS"
	envMetricsFile  = "TAGTRIM_METRICS_FILE"
	envLogFile      = "TAGTRIM_LOG_FILE"
)

func applyEnv(cfg *Config, env []string) error {
	vals := make(map[string]string)
	for _, e := range env {
		idx := strings.Index(e, "=")
		if idx <= 0 {
			continue
		}
		key := strings.TrimSpace(e[:idx])
		val := strings.TrimSpace(e[idx+1:])
		vals[key] = val
	}
	if v, ok := vals[envMode]; ok && v != "" {
		cfg.Mode = strings.ToLower(v)
	}
	if v, ok := vals[envPreformatted]; ok && v != "" {
		cfg.Preformatted = splitList(v)
	}
	if v, ok := vals[envCollapse]; ok && v != "" {
		b, err := parseBool(v)
		if err != nil {
			return erruser.Coded(erruser.CodeConfigValue, "TAGTRIM_COLLAPSE must be 1/true/yes/on or 0/false/no/off.", err)
		}
		cfg.Collapse = b
	}
	if v, ok := vals[envJobs]; ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return erruser.Coded(erruser.CodeConfigValue, "TAGTRIM_JOBS must be a valid number.", err)
		}
		if n < 0 {
			return erruser.Coded(erruser.CodeConfigValue, "TAGTRIM_JOBS must be non-negative.", nil)
		}
		cfg.Jobs, err = safecast.Conv[int](n)
		if err != nil {
			return erruser.Coded(erruser.CodeConfigValue, "TAGTRIM_JOBS value out of range.", err)
		}
	}
	if v, ok := vals[envMetricsFile]; ok {
		cfg.MetricsFile = v
	}
	if v, ok := vals[envLogFile]; ok {
		cfg.LogFile = v
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// parseBool parses common boolean env values: 1/true/yes/on = true, 0/false/no/off = false (case-insensitive).
func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean %q", s)
	}
}

func applyOverrides(cfg *Config, o *Overrides) {
	if o == nil {
		return
	}
	if o.Mode != nil && *o.Mode != "" {
		cfg.Mode = strings.ToLower(*o.Mode)
	}
	if len(o.Preformatted) > 0 {
		cfg.Preformatted = append([]string(nil), o.Preformatted...)
	}
	if o.Collapse != nil {
		cfg.Collapse = *o.Collapse
	}
	if o.Jobs != nil {
		v := *o.Jobs
		if v < 0 {
			v = 0
		}
		cfg.Jobs = v
	}
	if o.MetricsFile != nil {
		cfg.MetricsFile = *o.MetricsFile
	}
	if o.LogFile != nil {
		cfg.LogFile = *o.LogFile
	}
}
