package diag

import (
	"errors"
	"strings"
	"testing"
)

func TestManagerAccumulatesAndFails(t *testing.T) {
	m := NewManager()
	if m.Failed() {
		t.Fatal("a fresh Manager must not be failed")
	}

	m.Report(Warning, 3, "heads up")
	if m.Failed() {
		t.Fatal("a Warning must not mark the manager failed")
	}

	m.Report(Error, 5, "bad thing: %d", 42)
	if !m.Failed() {
		t.Fatal("an Error must mark the manager failed")
	}
	if len(m.Diagnostics()) != 2 {
		t.Fatalf("Diagnostics() has %d entries, want 2", len(m.Diagnostics()))
	}
}

func TestErrWrapsSentinelAndOnlyErrors(t *testing.T) {
	m := NewManager()
	m.Report(Warning, 1, "ignored")
	m.Report(Error, 2, "first failure")
	m.Report(Error, 3, "second failure")

	err := m.Err()
	if err == nil {
		t.Fatal("Err() must be non-nil once the manager has failed")
	}
	if !errors.Is(err, ErrLoweringFailed) {
		t.Error("Err() must wrap ErrLoweringFailed")
	}
	msg := err.Error()
	if strings.Contains(msg, "ignored") {
		t.Error("Err() must not include Warning-severity diagnostics")
	}
	if !strings.Contains(msg, "first failure") || !strings.Contains(msg, "second failure") {
		t.Errorf("Err() message missing collected errors: %s", msg)
	}
}

func TestErrNilWhenNotFailed(t *testing.T) {
	m := NewManager()
	m.Report(Warning, 1, "just a warning")
	if err := m.Err(); err != nil {
		t.Errorf("Err() = %v, want nil when nothing failed", err)
	}
}
