package logger

import (
	"testing"

	"go.uber.org/zap/zapcore"

	"propdesk/internal/config"
)

func TestNewFallsBackOnBadLevel(t *testing.T) {
	l, err := New(config.LogConfig{Level: "loud", Encoding: "json"}, "test")
	if err != nil {
		t.Fatalf("err=%v", err)
	}
	if !l.Core().Enabled(zapcore.InfoLevel) {
		t.Fatalf("info level should be enabled")
	}
	if l.Core().Enabled(zapcore.DebugLevel) {
		t.Fatalf("debug level should be disabled")
	}
}
