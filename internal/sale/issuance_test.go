package sale

import (
	"errors"
	"testing"
)

func TestReserveSequentialRanges(t *testing.T) {
	is := issuance{maxTotal: 10}

	r1, err := is.reserve(3)
	if err != nil {
		t.Fatal(err)
	}
	if r1.first != 0 || r1.count != 3 {
		t.Fatalf("first range %+v", r1)
	}

	r2, err := is.reserve(4)
	if err != nil {
		t.Fatal(err)
	}
	if r2.first != 3 || r2.count != 4 {
		t.Fatalf("second range %+v", r2)
	}
	if is.totalIssued != 7 {
		t.Fatalf("totalIssued=%d, want 7", is.totalIssued)
	}
}

func TestReserveCeiling(t *testing.T) {
	is := issuance{maxTotal: 10, totalIssued: 7}

	// Exactly to the ceiling succeeds.
	if _, err := is.reserve(3); err != nil {
		t.Fatal(err)
	}
	if is.totalIssued != 10 {
		t.Fatalf("totalIssued=%d, want 10", is.totalIssued)
	}

	// One past the ceiling fails and mutates nothing.
	if _, err := is.reserve(1); !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("expected ErrCapacityExceeded, got %v", err)
	}
	if is.totalIssued != 10 {
		t.Fatalf("failed reserve moved totalIssued to %d", is.totalIssued)
	}
}

func TestReserveZeroAndOverflow(t *testing.T) {
	is := issuance{maxTotal: ^uint64(0), totalIssued: ^uint64(0) - 1}
	if _, err := is.reserve(0); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for zero, got %v", err)
	}
	if _, err := is.reserve(5); !errors.Is(err, ErrCapacityExceeded) {
		t.Fatalf("expected ErrCapacityExceeded on overflow, got %v", err)
	}
}
