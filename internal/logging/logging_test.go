package logging

import (
	"testing"

	"github.com/sirupsen/logrus"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]logrus.Level{
		"dev":     logrus.DebugLevel,
		"DEBUG":   logrus.DebugLevel,
		"info":    logrus.InfoLevel,
		"warning": logrus.WarnLevel,
		"prod":    logrus.ErrorLevel,
		"bogus":   logrus.InfoLevel,
	}
	for name, want := range cases {
		if got := ParseLevel(name, logrus.InfoLevel); got != want {
			t.Errorf("ParseLevel(%q) = %v, want %v", name, got, want)
		}
	}
}

func TestInitPrefersExplicitLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")

	logger := Init(Options{Level: "warn", Default: logrus.ErrorLevel})
	if logger.GetLevel() != logrus.WarnLevel {
		t.Errorf("expected warn, got %v", logger.GetLevel())
	}

	logger = Init(Options{Default: logrus.ErrorLevel})
	if logger.GetLevel() != logrus.DebugLevel {
		t.Errorf("expected LOG_LEVEL to apply, got %v", logger.GetLevel())
	}
}
