package logger

import "testing"

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, err := New("loud", "json"); err == nil {
		t.Fatal("expected an error for an unknown level")
	}
}

func TestNewBuildsConsoleLogger(t *testing.T) {
	l, err := New("debug", "console")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !l.Core().Enabled(-1) {
		t.Fatal("expected debug level to be enabled")
	}
}
