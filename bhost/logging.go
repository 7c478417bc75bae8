package bhost

import (
	"context"

	"github.com/advdv/bpipe"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gopkg.in/natefinch/lumberjack.v2"
)

// NewLogger creates a zap logger configured from the environment. It logs JSON to stderr and, when
// BP_LOG_FILE is set, also to a size-rotated file.
func NewLogger(env Environment) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(env.logLevel())
	cfg.EncoderConfig.TimeKey = "timestamp"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	logs, err := cfg.Build()
	if err != nil {
		return nil, err
	}

	if env.logFile() == "" {
		return logs, nil
	}

	file := zapcore.NewCore(
		zapcore.NewJSONEncoder(cfg.EncoderConfig),
		zapcore.AddSync(&lumberjack.Logger{
			Filename:   env.logFile(),
			MaxSize:    50, // MB
			MaxBackups: 3,
			MaxAge:     7, // days
		}),
		cfg.Level,
	)

	return logs.WithOptions(zap.WrapCore(func(c zapcore.Core) zapcore.Core {
		return zapcore.NewTee(c, file)
	})), nil
}

// provideLogger builds the logger and flushes it when the app stops.
func provideLogger(lc fx.Lifecycle, env Environment) (*zap.Logger, error) {
	logs, err := NewLogger(env)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			_ = logs.Sync() // syncing stderr fails on some platforms
			return nil
		},
	})

	return logs, nil
}

type zapLogger struct{ *zap.Logger }

func (l zapLogger) LogHandlerFailure(err error) {
	l.Logger.Warn("handler failed the exchange", zap.Error(err), zap.Int("status", bpipe.StatusOf(err)))
}

func (l zapLogger) LogInboundBodyError(err error) {
	l.Logger.Warn("inbound body ended abruptly", zap.Error(err))
}

func (l zapLogger) LogTruncatedResponse(err error) {
	l.Logger.Error("response body truncated", zap.Error(err))
}

func newZapBPipeLogger(l *zap.Logger) bpipe.Logger {
	return zapLogger{l.Named("bpipe").Named("bhost")}
}
