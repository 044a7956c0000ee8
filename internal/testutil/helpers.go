// Package testutil provides shared helpers and mocks for tests.
package testutil

import (
	"errors"
	"strings"
	"testing"
)

// ErrTest is a generic test error.
var ErrTest = errors.New("test error")

// AssertNoError fails if err is not nil.
func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// AssertError fails if err is nil.
func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error, got nil")
	}
}

// AssertEqual fails if got != want.
func AssertEqual[T comparable](t *testing.T, got, want T) {
	t.Helper()
	if got != want {
		t.Fatalf("got %v, want %v", got, want)
	}
}

// AssertContains fails if s does not contain substr.
func AssertContains(t *testing.T, s, substr string) {
	t.Helper()
	if !strings.Contains(s, substr) {
		t.Fatalf("expected %q to contain %q", s, substr)
	}
}

// AssertLen fails if len(s) != want.
func AssertLen[T any](t *testing.T, s []T, want int) {
	t.Helper()
	if len(s) != want {
		t.Fatalf("len() = %d, want %d", len(s), want)
	}
}

// AssertMapLen fails if len(m) != want.
func AssertMapLen[K comparable, V any](t *testing.T, m map[K]V, want int) {
	t.Helper()
	if len(m) != want {
		t.Fatalf("len() = %d, want %d", len(m), want)
	}
}

// AssertTrue fails if b is false.
func AssertTrue(t *testing.T, b bool, msg string) {
	t.Helper()
	if !b {
		t.Fatalf("expected true: %s", msg)
	}
}
