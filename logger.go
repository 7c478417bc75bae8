package bpipe

import (
	"log"
	"sync/atomic"
	"testing"
)

// Logger can be implemented to get informed about important states.
type Logger interface {
	LogHandlerFailure(err error)
	LogInboundBodyError(err error)
	LogTruncatedResponse(err error)
}

type stdLogger struct{ *log.Logger }

func (l stdLogger) LogHandlerFailure(err error) {
	l.Logger.Printf("bpipe: handler failure: %s", err)
}

func (l stdLogger) LogInboundBodyError(err error) {
	l.Logger.Printf("bpipe: inbound body ended abruptly: %s", err)
}

func (l stdLogger) LogTruncatedResponse(err error) {
	l.Logger.Printf("bpipe: response body truncated: %s", err)
}

func NewStdLogger(l *log.Logger) Logger {
	if l == nil {
		l = log.Default()
	}

	return stdLogger{l}
}

type TestLogger struct {
	tb testing.TB

	NumLogHandlerFailure    int64
	NumLogInboundBodyError  int64
	NumLogTruncatedResponse int64
}

func NewTestLogger(tb testing.TB) *TestLogger {
	return &TestLogger{tb: tb}
}

func (l *TestLogger) LogHandlerFailure(err error) {
	atomic.AddInt64(&l.NumLogHandlerFailure, 1)
	l.tb.Logf("bpipe: handler failure: %s", err)
}

func (l *TestLogger) LogInboundBodyError(err error) {
	atomic.AddInt64(&l.NumLogInboundBodyError, 1)
	l.tb.Logf("bpipe: inbound body ended abruptly: %s", err)
}

func (l *TestLogger) LogTruncatedResponse(err error) {
	atomic.AddInt64(&l.NumLogTruncatedResponse, 1)
	l.tb.Logf("bpipe: response body truncated: %s", err)
}

var _ Logger = &TestLogger{}
