package testutils

import (
	"fmt"
	"io"
	"os"
	"sync"
	"testing"

	"github.com/decred/slog"
)

// showLogEnv is the environment variable that enables printing test logs
// with t.Log.
const showLogEnv = "WINAUDIO_TEST_LOG"

// TestLogBackend is a slog backend suitable for using with tests. Log lines
// are only forwarded to t.Log while the test is running.
type TestLogBackend struct {
	mtx     sync.Mutex
	tb      testing.TB
	w       io.Writer
	done    bool
	showLog bool
	lines   int
}

func (tlb *TestLogBackend) Write(b []byte) (int, error) {
	tlb.mtx.Lock()
	tlb.lines += 1
	if !tlb.done && tlb.showLog {
		tlb.tb.Log(string(b[:len(b)-1]))
	}
	tlb.mtx.Unlock()

	if tlb.w != nil {
		tlb.w.Write(b)
	}
	return len(b), nil
}

// Lines is the number of log lines written so far.
func (tlb *TestLogBackend) Lines() int {
	tlb.mtx.Lock()
	defer tlb.mtx.Unlock()
	return tlb.lines
}

type TestLogBackendOption func(t *TestLogBackend)

// WithShowLog forces log lines to be (or not be) forwarded to t.Log,
// independently of the environment.
func WithShowLog(showLog bool) TestLogBackendOption {
	return func(t *TestLogBackend) {
		t.showLog = showLog
	}
}

// WithMiddlewareWriter copies every log line to w.
func WithMiddlewareWriter(w io.Writer) TestLogBackendOption {
	return func(t *TestLogBackend) {
		t.w = w
	}
}

// NewTestLogBackend returns a log backend that can be used as an io.Writer to
// write logs to during a test.
func NewTestLogBackend(t testing.TB, opts ...TestLogBackendOption) *TestLogBackend {
	tlb := &TestLogBackend{tb: t, showLog: os.Getenv(showLogEnv) != ""}
	for _, opt := range opts {
		opt(tlb)
	}
	t.Cleanup(func() {
		tlb.mtx.Lock()
		tlb.done = true
		tlb.mtx.Unlock()
	})
	return tlb
}

// TestLoggerSys returns an slog.Logger for the given subsystem that logs by
// issuing t.Log calls.
func TestLoggerSys(t testing.TB, sys string) slog.Logger {
	bknd := slog.NewBackend(NewTestLogBackend(t))
	logg := bknd.Logger(sys)
	logg.SetLevel(slog.LevelTrace)
	return logg
}

// TestLoggerBackend returns a function that generates loggers for subsystems,
// all of which log by calling t.Log.
func TestLoggerBackend(t testing.TB, name string) func(subsys string) slog.Logger {
	bknd := slog.NewBackend(NewTestLogBackend(t))
	return func(subsys string) slog.Logger {
		logg := bknd.Logger(fmt.Sprintf("%7s - %s", name, subsys))
		logg.SetLevel(slog.LevelTrace)
		return logg
	}
}
