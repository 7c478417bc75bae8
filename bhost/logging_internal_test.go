package bhost

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type testEnv struct {
	level   zapcore.Level
	file    string
	otelExp string
}

func (e testEnv) port() int                      { return 8080 }
func (e testEnv) serviceName() string            { return "test" }
func (e testEnv) logLevel() zapcore.Level        { return e.level }
func (e testEnv) logFile() string                { return e.file }
func (e testEnv) otelExporter() string           { return e.otelExp }
func (e testEnv) manifestPath() string           { return "" }
func (e testEnv) middleware() []string           { return nil }
func (e testEnv) service() string                { return "echo" }
func (e testEnv) channelCapacity() int           { return 1 }
func (e testEnv) exchangeTimeout() time.Duration { return 30 * time.Second }

func TestNewLogger(t *testing.T) {
	for _, lvl := range []zapcore.Level{zapcore.DebugLevel, zapcore.InfoLevel, zapcore.WarnLevel, zapcore.ErrorLevel} {
		t.Run(lvl.String(), func(t *testing.T) {
			logger, err := NewLogger(testEnv{level: lvl})
			require.NoError(t, err)
			require.True(t, logger.Core().Enabled(lvl))
			require.False(t, logger.Core().Enabled(lvl-1))
		})
	}
}

func TestNewLoggerTeesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bpipe.log")

	logger, err := NewLogger(testEnv{level: zapcore.InfoLevel, file: path})
	require.NoError(t, err)

	logger.Info("to the file", zap.String("unit", "echo"))
	logger.Debug("filtered")
	_ = logger.Sync()

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(b), `"msg":"to the file"`)
	require.Contains(t, string(b), `"unit":"echo"`)
	require.NotContains(t, string(b), "filtered")
}

func TestZapBPipeLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := newZapBPipeLogger(zap.New(core))

	l.LogHandlerFailure(errors.New("boom"))
	l.LogInboundBodyError(errors.New("reset"))
	l.LogTruncatedResponse(errors.New("cut"))

	entries := logs.All()
	require.Len(t, entries, 3)
	require.Equal(t, "bpipe.bhost", entries[0].LoggerName)
	require.Equal(t, "handler failed the exchange", entries[0].Message)
	require.EqualValues(t, 500, entries[0].ContextMap()["status"])
	require.Equal(t, zapcore.WarnLevel, entries[1].Level)
	require.Equal(t, zapcore.ErrorLevel, entries[2].Level)
}
