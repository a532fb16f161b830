package token

import (
	"errors"
	"testing"
)

func TestMintAndOwnership(t *testing.T) {
	l := NewInMemory()
	if err := l.Mint(0, "0xaaa"); err != nil {
		t.Fatal(err)
	}
	if err := l.Mint(1, "0xaaa"); err != nil {
		t.Fatal(err)
	}
	owner, err := l.OwnerOf(0)
	if err != nil || owner != "0xaaa" {
		t.Fatalf("OwnerOf(0)=%q,%v", owner, err)
	}
	if got := l.BalanceOf("0xaaa"); got != 2 {
		t.Fatalf("balance=%d, want 2", got)
	}
	if err := l.Mint(0, "0xbbb"); !errors.Is(err, ErrAlreadyMinted) {
		t.Fatalf("expected ErrAlreadyMinted, got %v", err)
	}
	if _, err := l.OwnerOf(99); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTransferAuthorization(t *testing.T) {
	l := NewInMemory()
	if err := l.Mint(0, "0xaaa"); err != nil {
		t.Fatal(err)
	}

	if err := l.Transfer("0xccc", "0xaaa", "0xccc", 0); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("stranger transfer: expected ErrNotAuthorized, got %v", err)
	}
	if err := l.Transfer("0xaaa", "0xbbb", "0xccc", 0); !errors.Is(err, ErrNotOwner) {
		t.Fatalf("wrong from: expected ErrNotOwner, got %v", err)
	}

	if err := l.Approve("0xbbb", "0xccc", 0); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("stranger approve: expected ErrNotAuthorized, got %v", err)
	}
	if err := l.Approve("0xaaa", "0xccc", 0); err != nil {
		t.Fatal(err)
	}
	if err := l.Transfer("0xccc", "0xaaa", "0xccc", 0); err != nil {
		t.Fatal(err)
	}
	owner, _ := l.OwnerOf(0)
	if owner != "0xccc" {
		t.Fatalf("owner=%q after approved transfer", owner)
	}
	if l.BalanceOf("0xaaa") != 0 || l.BalanceOf("0xccc") != 1 {
		t.Fatal("balances not updated on transfer")
	}

	// Approval must be cleared once used.
	if err := l.Transfer("0xaaa", "0xccc", "0xaaa", 0); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("stale approval honoured: %v", err)
	}
}

func TestOperatorApproval(t *testing.T) {
	l := NewInMemory()
	_ = l.Mint(0, "0xaaa")
	_ = l.Mint(1, "0xaaa")

	l.SetApprovalForAll("0xaaa", "0xop", true)
	if err := l.Transfer("0xop", "0xaaa", "0xbbb", 0); err != nil {
		t.Fatal(err)
	}
	l.SetApprovalForAll("0xaaa", "0xop", false)
	if err := l.Transfer("0xop", "0xaaa", "0xbbb", 1); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("revoked operator still honoured: %v", err)
	}
}

func TestMetadataResolution(t *testing.T) {
	m := NewMetadata("https://meta.example/tokens/")
	if got := m.ResolveURI(7); got != "https://meta.example/tokens/7" {
		t.Fatalf("ResolveURI(7)=%q", got)
	}
	m.SetTokenURI(7, "ipfs://special")
	if got := m.ResolveURI(7); got != "ipfs://special" {
		t.Fatalf("explicit URI not honoured: %q", got)
	}
	m.SetTokenURI(7, "")
	if got := m.ResolveURI(7); got != "https://meta.example/tokens/7" {
		t.Fatalf("clearing URI did not restore fallback: %q", got)
	}
	m.SetBaseURI("")
	if got := m.ResolveURI(7); got != "" {
		t.Fatalf("empty base should resolve empty, got %q", got)
	}
}
