package token

import (
	"errors"
	"sync"
)

var (
	ErrNotFound      = errors.New("token: not found")
	ErrAlreadyMinted = errors.New("token: identifier already minted")
	ErrNotOwner      = errors.New("token: caller is not the owner")
	ErrNotAuthorized = errors.New("token: caller is not owner or approved")
	ErrInvalidOwner  = errors.New("token: owner address is required")
)

// Ledger is the ownership map consumed by the sale engine. Standard
// non-fungible semantics: one owner per identifier, single-token approvals,
// operator approvals per owner.
type Ledger interface {
	Mint(id uint64, owner string) error
	OwnerOf(id uint64) (string, error)
	BalanceOf(owner string) uint64
	Transfer(caller string, from, to string, id uint64) error
	Approve(caller, spender string, id uint64) error
	SetApprovalForAll(owner, operator string, approved bool)
}

// InMemory implements Ledger with in-process concurrency safety.
type InMemory struct {
	mu        sync.RWMutex
	owners    map[uint64]string
	balances  map[string]uint64
	approved  map[uint64]string
	operators map[string]map[string]bool
}

// NewInMemory creates an empty ownership ledger.
func NewInMemory() *InMemory {
	return &InMemory{
		owners:    make(map[uint64]string),
		balances:  make(map[string]uint64),
		approved:  make(map[uint64]string),
		operators: make(map[string]map[string]bool),
	}
}

// Mint assigns a fresh identifier to owner. Identifiers come from the
// issuance ledger and are never reused, so an existing entry is a bug.
func (l *InMemory) Mint(id uint64, owner string) error {
	if owner == "" {
		return ErrInvalidOwner
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, exists := l.owners[id]; exists {
		return ErrAlreadyMinted
	}
	l.owners[id] = owner
	l.balances[owner]++
	return nil
}

func (l *InMemory) OwnerOf(id uint64) (string, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	owner, ok := l.owners[id]
	if !ok {
		return "", ErrNotFound
	}
	return owner, nil
}

func (l *InMemory) BalanceOf(owner string) uint64 {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.balances[owner]
}

// Transfer moves id from `from` to `to`. The caller must be the owner, the
// approved spender for the token, or an operator for the owner. Any
// per-token approval is cleared on transfer.
func (l *InMemory) Transfer(caller, from, to string, id uint64) error {
	if to == "" {
		return ErrInvalidOwner
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	owner, ok := l.owners[id]
	if !ok {
		return ErrNotFound
	}
	if owner != from {
		return ErrNotOwner
	}
	if caller != owner && l.approved[id] != caller && !l.operators[owner][caller] {
		return ErrNotAuthorized
	}
	l.owners[id] = to
	l.balances[from]--
	l.balances[to]++
	delete(l.approved, id)
	return nil
}

// Approve lets owner designate a spender for a single token.
func (l *InMemory) Approve(caller, spender string, id uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	owner, ok := l.owners[id]
	if !ok {
		return ErrNotFound
	}
	if caller != owner && !l.operators[owner][caller] {
		return ErrNotAuthorized
	}
	if spender == "" {
		delete(l.approved, id)
		return nil
	}
	l.approved[id] = spender
	return nil
}

// SetApprovalForAll toggles operator rights over every token of owner.
func (l *InMemory) SetApprovalForAll(owner, operator string, approved bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if approved {
		if l.operators[owner] == nil {
			l.operators[owner] = make(map[string]bool)
		}
		l.operators[owner][operator] = true
		return
	}
	delete(l.operators[owner], operator)
}
