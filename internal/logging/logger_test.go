package logging

import (
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNew(t *testing.T) {
	cases := []struct {
		level, format string
		enabled       zapcore.Level
		disabled      zapcore.Level
	}{
		{"info", "console", zapcore.InfoLevel, zapcore.DebugLevel},
		{"DEBUG", "json", zapcore.DebugLevel, zapcore.DebugLevel - 1},
		{"warn", "", zapcore.WarnLevel, zapcore.InfoLevel},
	}
	for _, tc := range cases {
		log, err := New(tc.level, tc.format)
		if err != nil {
			t.Fatalf("%s/%s: %v", tc.level, tc.format, err)
		}
		if !log.Core().Enabled(tc.enabled) || log.Core().Enabled(tc.disabled) {
			t.Fatalf("%s/%s: wrong level", tc.level, tc.format)
		}
	}
}

func TestNewRejectsBadInput(t *testing.T) {
	if _, err := New("loud", "console"); err == nil {
		t.Fatal("expected level error")
	}
	if _, err := New("info", "xml"); err == nil {
		t.Fatal("expected format error")
	}
}
