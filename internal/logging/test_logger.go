package logging

import (
	"testing"

	"github.com/sirupsen/logrus"
)

// testWriter maps log lines onto t.Log so they only show for failed tests.
type testWriter struct {
	t testing.TB
}

func (w testWriter) Write(d []byte) (int, error) {
	n := len(d)
	if n > 0 && d[n-1] == '\n' {
		d = d[:n-1]
	}
	w.t.Log(string(d))
	return n, nil
}

// NewTestLogger returns a debug-level logger writing into t.Log.
func NewTestLogger(t testing.TB) *logrus.Logger {
	logger := logrus.New()
	logger.Out = testWriter{t: t}
	logger.Level = logrus.DebugLevel
	return logger
}
