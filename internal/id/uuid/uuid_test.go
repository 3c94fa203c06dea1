// Package uuid includes tests for the UUID generator wrapper.
package uuid

import (
	"testing"

	goUUID "github.com/google/uuid"
)

// TestGeneratorNewClientKey ensures generated client keys are unique and valid UUIDs.
func TestGeneratorNewClientKey(t *testing.T) {
	t.Parallel()

	gen := New()
	id1, err := gen.NewClientKey()
	if err != nil {
		t.Fatalf("NewClientKey() error = %v", err)
	}
	id2, err := gen.NewClientKey()
	if err != nil {
		t.Fatalf("NewClientKey() error = %v", err)
	}
	if id1 == id2 {
		t.Fatalf("expected unique keys, got %s and %s", id1, id2)
	}
	if _, err := goUUID.Parse(id1); err != nil {
		t.Fatalf("id1 not valid UUID: %v", err)
	}
}

// TestGeneratorNewRequestID ensures the request-id variant returns a
// parseable, unique UUID.
func TestGeneratorNewRequestID(t *testing.T) {
	t.Parallel()

	gen := New()
	id1, err := gen.NewRequestID()
	if err != nil {
		t.Fatalf("NewRequestID() error = %v", err)
	}
	id2, err := gen.NewRequestID()
	if err != nil {
		t.Fatalf("NewRequestID() error = %v", err)
	}
	if id1 == id2 {
		t.Fatalf("expected unique ids, got %s and %s", id1, id2)
	}
	if _, err := goUUID.Parse(id1); err != nil {
		t.Fatalf("id1 not valid UUID: %v", err)
	}
}
