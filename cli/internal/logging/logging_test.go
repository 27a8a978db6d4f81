package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func restoreGlobals(t *testing.T) {
	t.Helper()
	level, logger := zerolog.GlobalLevel(), log.Logger
	t.Cleanup(func() {
		zerolog.SetGlobalLevel(level)
		log.Logger = logger
	})
}

func TestLevelFor(t *testing.T) {
	tests := []struct {
		name      string
		verbosity int
		want      zerolog.Level
	}{
		{"negative is warn", -1, zerolog.WarnLevel},
		{"default warn level", 0, zerolog.WarnLevel},
		{"info level", 1, zerolog.InfoLevel},
		{"debug level", 2, zerolog.DebugLevel},
		{"trace level", 3, zerolog.TraceLevel},
		{"high verbosity defaults to trace", 7, zerolog.TraceLevel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, LevelFor(tt.verbosity))
		})
	}
}

func TestSetupLogger_ConsoleAndFile(t *testing.T) {
	restoreGlobals(t)
	var buf bytes.Buffer
	path := filepath.Join(t.TempDir(), "logs", "tagtrim.log")

	closeLog := SetupLogger(1, &buf, path)
	assert.Equal(t, zerolog.InfoLevel, zerolog.GlobalLevel())

	logger := GetLogger("run")
	logger.Info().Str("file", "a.html").Msg("compressed")
	assert.Contains(t, buf.String(), "compressed")
	assert.Contains(t, buf.String(), "component=run")

	require.NoError(t, closeLog())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"component":"run"`)
}

func TestSetupLogger_QuietByDefault(t *testing.T) {
	restoreGlobals(t)
	var buf bytes.Buffer
	closeLog := SetupLogger(0, &buf, "")
	logger := GetLogger("run")
	logger.Info().Msg("hidden")
	assert.NotContains(t, buf.String(), "hidden")
	assert.NoError(t, closeLog())
}

func TestLogOperationStart(t *testing.T) {
	restoreGlobals(t)
	var buf bytes.Buffer
	_ = SetupLogger(2, &buf, "")
	done := LogOperationStart(GetLogger("test"), "compress")
	done()
	assert.Contains(t, buf.String(), "Operation started")
	assert.Contains(t, buf.String(), "Operation completed")
}
