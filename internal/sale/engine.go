package sale

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/holiman/uint256"

	"mintgate.org/internal/authz"
	"mintgate.org/internal/ids"
	"mintgate.org/internal/obs"
	"mintgate.org/internal/token"
)

// Journal persists committed mutations. The in-memory engine stays
// authoritative; journal failures are logged, never rolled back into the
// sale state.
type Journal interface {
	RecordPurchase(ctx context.Context, r Receipt) error
	RecordAllocation(ctx context.Context, r Receipt) error
	SaveState(ctx context.Context, s State) error
}

// State is a full snapshot of the engine for durability and recovery.
type State struct {
	Owner          string            `json:"owner"`
	AuthorityKey   string            `json:"authority_key"`
	BaseURI        string            `json:"base_uri"`
	Vault          *uint256.Int      `json:"vault"`
	TotalBuys      uint64            `json:"total_buys"`
	TotalIssued    uint64            `json:"total_issued"`
	WhitelistTotal uint64            `json:"whitelist_total"`
	PublicTotal    uint64            `json:"public_total"`
	WhitelistBuys  map[string]uint64 `json:"whitelist_buys"`
	PublicBuys     map[string]uint64 `json:"public_buys"`
}

// Config assembles an Engine.
type Config struct {
	Owner     string
	Authority *authz.Authority
	Whitelist Params
	Public    Params
	MaxTotal  uint64
	Tokens    token.Ledger
	Metadata  *token.Metadata
	Journal   Journal          // optional
	Now       func() time.Time // optional, defaults to time.Now
}

// Engine is the purchase orchestrator and administration surface. One
// RWMutex covers every mutating operation end to end, so no caller can
// observe capacity mid-purchase; an in-flight flag additionally rejects
// calls that arrive while another mutation is running (including a
// collaborator hook reentering the engine during the mint step).
type Engine struct {
	mu       sync.RWMutex
	inFlight atomic.Bool

	owner     string
	authority *authz.Authority
	wl        *phase
	pub       *phase
	issuance  issuance
	tokens    token.Ledger
	metadata  *token.Metadata
	vault     *uint256.Int
	journal   Journal
	now       func() time.Time
}

// NewEngine validates the configuration and builds a fresh engine.
func NewEngine(cfg Config) (*Engine, error) {
	owner := strings.ToLower(strings.TrimSpace(cfg.Owner))
	if owner == "" {
		return nil, fmt.Errorf("%w: owner is required", ErrInvalidInput)
	}
	if cfg.Authority == nil {
		return nil, fmt.Errorf("%w: authority is required", ErrInvalidInput)
	}
	if cfg.Tokens == nil {
		return nil, fmt.Errorf("%w: token ledger is required", ErrInvalidInput)
	}
	if cfg.Metadata == nil {
		return nil, fmt.Errorf("%w: metadata store is required", ErrInvalidInput)
	}
	if err := cfg.Whitelist.Validate(); err != nil {
		return nil, fmt.Errorf("whitelist params: %w", err)
	}
	if err := cfg.Public.Validate(); err != nil {
		return nil, fmt.Errorf("public params: %w", err)
	}
	if cfg.MaxTotal == 0 {
		return nil, fmt.Errorf("%w: max total supply must be positive", ErrInvalidInput)
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		owner:     owner,
		authority: cfg.Authority,
		wl:        newPhase(PhaseWhitelist, cfg.Whitelist),
		pub:       newPhase(PhasePublic, cfg.Public),
		issuance:  issuance{maxTotal: cfg.MaxTotal},
		tokens:    cfg.Tokens,
		metadata:  cfg.Metadata,
		vault:     uint256.NewInt(0),
		journal:   cfg.Journal,
		now:       now,
	}, nil
}

// enter is the shared critical-section prologue for mutating operations.
// The flag is checked before the lock: a nested call from a collaborator
// hook on the same goroutine sees it set and bounces instead of
// deadlocking; distinct goroutines that pass the check serialize on mu.
func (e *Engine) enter() (func(), error) {
	if e.inFlight.Load() {
		return nil, ErrReentrant
	}
	e.mu.Lock()
	e.inFlight.Store(true)
	return func() {
		e.inFlight.Store(false)
		e.mu.Unlock()
	}, nil
}

// BuyWhitelist purchases in the whitelist phase. The proof must carry the
// "is-whitelisted" role bound to the buyer.
func (e *Engine) BuyWhitelist(ctx context.Context, buyer string, paid *uint256.Int, proof []byte) (Receipt, error) {
	return e.buy(ctx, e.wl, authz.RoleWhitelisted, buyer, paid, proof)
}

// BuyPublic purchases in the public phase. The proof must carry the
// "captcha-solved" role bound to the buyer.
func (e *Engine) BuyPublic(ctx context.Context, buyer string, paid *uint256.Int, proof []byte) (Receipt, error) {
	return e.buy(ctx, e.pub, authz.RoleCaptchaSolved, buyer, paid, proof)
}

// buy runs the full purchase sequence: window, proof, phase admission,
// issuance reservation, mint, vault credit. Each step can abort the whole
// call; nothing below a failed step has executed, and the phase counters
// only move in the admission step itself, so a failure leaves no trace.
func (e *Engine) buy(ctx context.Context, ph *phase, role authz.Role, buyer string, paid *uint256.Int, proof []byte) (Receipt, error) {
	buyer = strings.ToLower(strings.TrimSpace(buyer))
	if buyer == "" {
		return Receipt{}, fmt.Errorf("%w: buyer is required", ErrInvalidInput)
	}

	exit, err := e.enter()
	if err != nil {
		obs.ObserveRejection(string(ph.kind), RejectReason(err))
		return Receipt{}, err
	}
	defer exit()

	receipt, err := e.buyLocked(ph, role, buyer, paid, proof)
	if err != nil {
		obs.ObserveRejection(string(ph.kind), RejectReason(err))
		return Receipt{}, err
	}

	obs.ObservePurchase(string(ph.kind), receipt.Units)
	obs.SetTokensIssued(e.issuance.totalIssued)
	e.persist(ctx, receipt, false)
	return receipt, nil
}

func (e *Engine) buyLocked(ph *phase, role authz.Role, buyer string, paid *uint256.Int, proof []byte) (Receipt, error) {
	now := e.now()
	if !ph.inWindow(now) {
		return Receipt{}, ErrOutsideWindow
	}
	if !e.authority.Verify(role, buyer, nil, proof) {
		return Receipt{}, ErrUnauthorized
	}
	units, err := ph.admit(buyer, paid)
	if err != nil {
		return Receipt{}, err
	}
	rng, err := e.issuance.reserve(units)
	if err != nil {
		ph.revert(buyer, units)
		return Receipt{}, err
	}
	e.issuance.recordBuys(units)
	for i := uint64(0); i < rng.count; i++ {
		if err := e.tokens.Mint(rng.first+i, buyer); err != nil {
			// Sequential never-reused ids make this unreachable unless the
			// collaborator is corrupted; surface it loudly.
			panic(fmt.Sprintf("sale: mint of reserved id %d failed: %v", rng.first+i, err))
		}
	}
	e.vault.Add(e.vault, paid)
	return Receipt{
		ID:           ids.Receipt(),
		Kind:         ph.kind,
		Buyer:        buyer,
		Units:        units,
		FirstTokenID: rng.first,
		Paid:         paid.Clone(),
		CreatedAt:    now.UTC(),
	}, nil
}

// Airdrop mints n tokens to recipient outside the purchase path. Phase
// accounting is bypassed; the issuance ceiling is not.
func (e *Engine) Airdrop(ctx context.Context, caller, recipient string, n uint64) (Receipt, error) {
	recipient = strings.ToLower(strings.TrimSpace(recipient))
	if recipient == "" {
		return Receipt{}, fmt.Errorf("%w: recipient is required", ErrInvalidInput)
	}
	if n == 0 {
		return Receipt{}, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}

	exit, err := e.enter()
	if err != nil {
		return Receipt{}, err
	}
	defer exit()

	if !e.isOwner(caller) {
		return Receipt{}, ErrPermissionDenied
	}
	rng, err := e.issuance.reserve(n)
	if err != nil {
		return Receipt{}, err
	}
	for i := uint64(0); i < rng.count; i++ {
		if err := e.tokens.Mint(rng.first+i, recipient); err != nil {
			panic(fmt.Sprintf("sale: mint of reserved id %d failed: %v", rng.first+i, err))
		}
	}
	obs.SetTokensIssued(e.issuance.totalIssued)
	receipt := Receipt{
		ID:           ids.Receipt(),
		Buyer:        recipient,
		Units:        n,
		FirstTokenID: rng.first,
		CreatedAt:    e.now().UTC(),
	}
	e.persist(ctx, receipt, true)
	return receipt, nil
}

// RotateAuthority replaces the trusted signer, invalidating every
// outstanding proof for every role in the same step.
func (e *Engine) RotateAuthority(ctx context.Context, caller string, key ed25519.PublicKey) error {
	exit, err := e.enter()
	if err != nil {
		return err
	}
	defer exit()

	if !e.isOwner(caller) {
		return ErrPermissionDenied
	}
	if err := e.authority.Rotate(key); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	e.saveState(ctx)
	return nil
}

// SetBaseURI replaces the metadata default prefix.
func (e *Engine) SetBaseURI(ctx context.Context, caller, uri string) error {
	exit, err := e.enter()
	if err != nil {
		return err
	}
	defer exit()

	if !e.isOwner(caller) {
		return ErrPermissionDenied
	}
	e.metadata.SetBaseURI(uri)
	e.saveState(ctx)
	return nil
}

// Withdraw moves amount from the proceeds vault to the recipient's credit.
// A nil amount withdraws the full vault. Returns the amount withdrawn.
func (e *Engine) Withdraw(ctx context.Context, caller, recipient string, amount *uint256.Int) (*uint256.Int, error) {
	recipient = strings.ToLower(strings.TrimSpace(recipient))
	if recipient == "" {
		return nil, fmt.Errorf("%w: recipient is required", ErrInvalidInput)
	}

	exit, err := e.enter()
	if err != nil {
		return nil, err
	}
	defer exit()

	if !e.isOwner(caller) {
		return nil, ErrPermissionDenied
	}
	if amount == nil {
		amount = e.vault.Clone()
	}
	if amount.IsZero() {
		return nil, fmt.Errorf("%w: nothing to withdraw", ErrInvalidInput)
	}
	if e.vault.Lt(amount) {
		return nil, ErrInsufficientProceeds
	}
	e.vault.Sub(e.vault, amount)
	e.saveState(ctx)
	return amount.Clone(), nil
}

// TransferOwnership hands the administration surface to a new identity.
func (e *Engine) TransferOwnership(ctx context.Context, caller, newOwner string) error {
	newOwner = strings.ToLower(strings.TrimSpace(newOwner))
	if newOwner == "" {
		return fmt.Errorf("%w: new owner is required", ErrInvalidInput)
	}

	exit, err := e.enter()
	if err != nil {
		return err
	}
	defer exit()

	if !e.isOwner(caller) {
		return ErrPermissionDenied
	}
	e.owner = newOwner
	e.saveState(ctx)
	return nil
}

func (e *Engine) isOwner(caller string) bool {
	return strings.ToLower(strings.TrimSpace(caller)) == e.owner
}

// --- read-only queries ---

// PhaseStatus returns parameters and totals for one phase.
func (e *Engine) PhaseStatus(kind PhaseKind) (PhaseStatus, error) {
	ph, err := e.phaseFor(kind)
	if err != nil {
		return PhaseStatus{}, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return ph.status(), nil
}

// BuysOf returns the units identity has bought in the given phase.
func (e *Engine) BuysOf(kind PhaseKind, identity string) (uint64, error) {
	ph, err := e.phaseFor(kind)
	if err != nil {
		return 0, err
	}
	e.mu.RLock()
	defer e.mu.RUnlock()
	return ph.buysOf(strings.ToLower(strings.TrimSpace(identity))), nil
}

// Supply returns global totals, the ceiling and administration state.
func (e *Engine) Supply() Supply {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return Supply{
		TotalBuys:    e.issuance.totalBuys,
		TotalIssued:  e.issuance.totalIssued,
		MaxTotal:     e.issuance.maxTotal,
		Vault:        e.vault.Clone(),
		Owner:        e.owner,
		AuthorityKey: authz.EncodePublicKey(e.authority.Key()),
		BaseURI:      e.metadata.BaseURI(),
	}
}

// Owner returns the current administrative owner.
func (e *Engine) Owner() string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.owner
}

func (e *Engine) phaseFor(kind PhaseKind) (*phase, error) {
	switch kind {
	case PhaseWhitelist:
		return e.wl, nil
	case PhasePublic:
		return e.pub, nil
	}
	return nil, fmt.Errorf("%w: unknown phase %q", ErrInvalidInput, kind)
}

// --- durability ---

// Snapshot captures the full engine state for the journal.
func (e *Engine) Snapshot() State {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.snapshotLocked()
}

func (e *Engine) snapshotLocked() State {
	return State{
		Owner:          e.owner,
		AuthorityKey:   authz.EncodePublicKey(e.authority.Key()),
		BaseURI:        e.metadata.BaseURI(),
		Vault:          e.vault.Clone(),
		TotalBuys:      e.issuance.totalBuys,
		TotalIssued:    e.issuance.totalIssued,
		WhitelistTotal: e.wl.totalBuys,
		PublicTotal:    e.pub.totalBuys,
		WhitelistBuys:  copyCounts(e.wl.buys),
		PublicBuys:     copyCounts(e.pub.buys),
	}
}

// Restore loads a previously saved state. Intended for boot-time recovery
// before the engine is serving traffic.
func (e *Engine) Restore(s State) error {
	if s.TotalIssued > e.issuance.maxTotal {
		return fmt.Errorf("%w: snapshot exceeds ceiling", ErrInvalidInput)
	}
	key, err := authz.ParsePublicKey(s.AuthorityKey)
	if err != nil {
		return fmt.Errorf("restore authority: %w", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.authority.Rotate(key); err != nil {
		return err
	}
	if s.Owner != "" {
		e.owner = strings.ToLower(s.Owner)
	}
	e.metadata.SetBaseURI(s.BaseURI)
	if s.Vault != nil {
		e.vault = s.Vault.Clone()
	}
	e.issuance.totalBuys = s.TotalBuys
	e.issuance.totalIssued = s.TotalIssued
	e.wl.totalBuys = s.WhitelistTotal
	e.pub.totalBuys = s.PublicTotal
	e.wl.buys = copyCounts(s.WhitelistBuys)
	e.pub.buys = copyCounts(s.PublicBuys)
	obs.SetTokensIssued(e.issuance.totalIssued)
	return nil
}

func (e *Engine) persist(ctx context.Context, r Receipt, allocation bool) {
	if e.journal == nil {
		return
	}
	var err error
	if allocation {
		err = e.journal.RecordAllocation(ctx, r)
	} else {
		err = e.journal.RecordPurchase(ctx, r)
	}
	if err != nil {
		obs.Logger().Printf(`{"level":"error","msg":"journal record failed","receipt":%q,"err":%q}`, r.ID, err.Error())
	}
	e.saveStateLocked(ctx)
}

func (e *Engine) saveState(ctx context.Context) {
	if e.journal == nil {
		return
	}
	e.saveStateLocked(ctx)
}

func (e *Engine) saveStateLocked(ctx context.Context) {
	if e.journal == nil {
		return
	}
	if err := e.journal.SaveState(ctx, e.snapshotLocked()); err != nil {
		obs.Logger().Printf(`{"level":"error","msg":"journal snapshot failed","err":%q}`, err.Error())
	}
}

func copyCounts(in map[string]uint64) map[string]uint64 {
	out := make(map[string]uint64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
