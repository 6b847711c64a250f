package common

import (
	"os"
	"testing"

	"github.com/sirupsen/logrus"
)

// This can be used as the destination for a logger and it'll
// map them into calls to testing.T.Log, so that you only see
// the logging for failed tests.
type testLoggerAdapter struct {
	t      testing.TB
	prefix string
}

func (a *testLoggerAdapter) Write(d []byte) (int, error) {
	if d[len(d)-1] == '\n' {
		d = d[:len(d)-1]
	}
	if a.prefix != "" {
		l := a.prefix + ": " + string(d)
		a.t.Log(l)
		return len(l), nil
	}
	a.t.Log(string(d))
	return len(d), nil
}

// TestLogLevel is the level used by test loggers. It can be raised with the
// LEDGERPOOL_TEST_LOG environment variable, eg LEDGERPOOL_TEST_LOG=debug.
var TestLogLevel = testLogLevel()

func testLogLevel() logrus.Level {
	if l, err := logrus.ParseLevel(os.Getenv("LEDGERPOOL_TEST_LOG")); err == nil {
		return l
	}
	return logrus.InfoLevel
}

// NewTestLogger returns a logger that writes through t.Log.
func NewTestLogger(t testing.TB, level logrus.Level) *logrus.Logger {
	logger := logrus.New()
	logger.Out = &testLoggerAdapter{t: t}
	logger.Level = level
	return logger
}

// NewTestEntry returns a logger entry, tagged with a prefix field, that writes
// through t.Log.
func NewTestEntry(t testing.TB, level logrus.Level) *logrus.Entry {
	return NewTestLogger(t, level).WithField("prefix", t.Name())
}
