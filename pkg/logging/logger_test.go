package logging

import "testing"

func TestNewLevels(t *testing.T) {
	for _, level := range []string{"debug", "info", "warn", "error", "bogus", ""} {
		if logger := New(level); logger == nil {
			t.Fatalf("New(%q) returned nil", level)
		}
	}
}

func TestDefault(t *testing.T) {
	if Default() == nil {
		t.Fatal("Default returned nil")
	}
}

func TestWith(t *testing.T) {
	logger := Default().With("component", "test")
	if logger == nil {
		t.Fatal("With returned nil")
	}
	logger.Info("attribute logger works")
}
