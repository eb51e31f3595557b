package testfixtures

import (
	"testing"

	"github.com/google/uuid"
)

func TestIDGeneratorProducesSequentialIDs(t *testing.T) {
	gen := NewIDGenerator("meeting")

	first := gen.Next()
	second := gen.Next()

	if first != "meeting-1" || second != "meeting-2" {
		t.Fatalf("unexpected identifiers: %q, %q", first, second)
	}
	if gen.Issued() != 2 {
		t.Fatalf("expected 2 issued identifiers, got %d", gen.Issued())
	}
}

func TestIDGeneratorCanReset(t *testing.T) {
	gen := NewIDGenerator("slot")
	_ = gen.Next()
	gen.SetCounter(0)

	if next := gen.Next(); next != "slot-1" {
		t.Fatalf("expected slot-1 after reset, got %q", next)
	}
}

func TestUUIDGeneratorIsDeterministic(t *testing.T) {
	a := NewUUIDGenerator("seed")
	b := NewUUIDGenerator("seed")

	first := a.Next()
	if _, err := uuid.Parse(first); err != nil {
		t.Fatalf("expected a UUID, got %q: %v", first, err)
	}
	if first != b.Next() {
		t.Fatalf("expected generators with the same seed to agree")
	}
	if first == a.Next() {
		t.Fatalf("expected successive identifiers to differ")
	}
}
