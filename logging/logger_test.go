package logging

import (
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew_InvalidLevel(t *testing.T) {
	_, err := New(Config{Level: "loud"})
	if err == nil {
		t.Error("New() with invalid level error = nil, want error")
	}
}

func TestNew_Levels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error"} {
		t.Run(level, func(t *testing.T) {
			logger, err := New(Config{Level: level, Development: level == "debug"})
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			if logger == nil {
				t.Fatal("New() returned nil logger")
			}
		})
	}
}

func TestSetLogger(t *testing.T) {
	t.Cleanup(func() { SetLogger(nil) })

	core, logs := observer.New(zap.DebugLevel)
	SetLogger(zap.New(core))

	L().Debug("hello", zap.String("k", "v"))
	if logs.Len() != 1 {
		t.Fatalf("logs.Len() = %d, want 1", logs.Len())
	}

	SetLogger(nil)
	L().Info("dropped")
	if logs.Len() != 1 {
		t.Errorf("after SetLogger(nil) logs.Len() = %d, want 1", logs.Len())
	}
}

func TestOrDefault(t *testing.T) {
	explicit := zap.NewExample()
	if got := OrDefault(explicit); got != explicit {
		t.Error("OrDefault() did not return the explicit logger")
	}
	if got := OrDefault(nil); got != L() {
		t.Error("OrDefault(nil) did not return L()")
	}
}
