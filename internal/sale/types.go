package sale

import (
	"errors"
	"fmt"
	"time"

	"github.com/holiman/uint256"
)

// PhaseKind selects one of the two sale windows.
type PhaseKind string

const (
	PhaseWhitelist PhaseKind = "whitelist"
	PhasePublic    PhaseKind = "public"
)

// Valid reports whether the kind names a real phase.
func (k PhaseKind) Valid() bool {
	return k == PhaseWhitelist || k == PhasePublic
}

// ParsePhaseKind converts a wire string into a PhaseKind.
func ParsePhaseKind(s string) (PhaseKind, error) {
	k := PhaseKind(s)
	if !k.Valid() {
		return "", fmt.Errorf("sale: unknown phase %q", s)
	}
	return k, nil
}

// Params configures one sale phase. Immutable once the engine is built.
type Params struct {
	Start        time.Time    `json:"start"`
	End          time.Time    `json:"end"`
	Price        *uint256.Int `json:"price"` // smallest currency unit per token
	UserMaxBuys  uint64       `json:"user_max_buys"`
	TotalMaxBuys uint64       `json:"total_max_buys"`
}

// Validate enforces the structural invariants on phase parameters.
func (p Params) Validate() error {
	if p.Start.After(p.End) {
		return errors.New("sale: phase start is after end")
	}
	if p.Price == nil || p.Price.IsZero() {
		return errors.New("sale: phase price must be positive")
	}
	if p.UserMaxBuys > p.TotalMaxBuys {
		return errors.New("sale: user cap exceeds phase cap")
	}
	return nil
}

// PhaseStatus is a read-only snapshot of one phase.
type PhaseStatus struct {
	Kind      PhaseKind `json:"kind"`
	Params    Params    `json:"params"`
	TotalBuys uint64    `json:"total_buys"`
}

// Supply is a read-only snapshot of global issuance and administration state.
type Supply struct {
	TotalBuys    uint64       `json:"total_buys"`
	TotalIssued  uint64       `json:"total_issued"`
	MaxTotal     uint64       `json:"max_total"`
	Vault        *uint256.Int `json:"vault"`
	Owner        string       `json:"owner"`
	AuthorityKey string       `json:"authority_key"` // hex ed25519 public key
	BaseURI      string       `json:"base_uri"`
}

// Receipt records one committed purchase or direct allocation. Token
// identifiers are the contiguous range [FirstTokenID, FirstTokenID+Units).
type Receipt struct {
	ID           string       `json:"id"`
	Kind         PhaseKind    `json:"phase,omitempty"` // empty for airdrops
	Buyer        string       `json:"buyer"`
	Units        uint64       `json:"units"`
	FirstTokenID uint64       `json:"first_token_id"`
	Paid         *uint256.Int `json:"paid,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}

// TokenIDs expands the reserved identifier range.
func (r Receipt) TokenIDs() []uint64 {
	ids := make([]uint64, 0, r.Units)
	for i := uint64(0); i < r.Units; i++ {
		ids = append(ids, r.FirstTokenID+i)
	}
	return ids
}

// Sentinel errors. Each maps to exactly one rejected precondition; nothing
// is mutated and no event is emitted when one is returned.
var (
	ErrOutsideWindow        = errors.New("sale: outside phase window")
	ErrUnauthorized         = errors.New("sale: proof missing or invalid")
	ErrBelowMinimum         = errors.New("sale: paid value below unit price")
	ErrUserCapExceeded      = errors.New("sale: user cap exceeded")
	ErrPhaseSoldOut         = errors.New("sale: phase sold out")
	ErrCapacityExceeded     = errors.New("sale: issuance ceiling exceeded")
	ErrPermissionDenied     = errors.New("sale: caller is not the owner")
	ErrReentrant            = errors.New("sale: mutating call already in flight")
	ErrInsufficientProceeds = errors.New("sale: insufficient proceeds")
	ErrInvalidInput         = errors.New("sale: invalid input")
)

// RejectReason labels an error for the rejection metrics.
func RejectReason(err error) string {
	switch {
	case errors.Is(err, ErrOutsideWindow):
		return "outside_window"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrBelowMinimum):
		return "below_minimum"
	case errors.Is(err, ErrUserCapExceeded):
		return "user_cap"
	case errors.Is(err, ErrPhaseSoldOut):
		return "phase_sold_out"
	case errors.Is(err, ErrCapacityExceeded):
		return "capacity"
	case errors.Is(err, ErrReentrant):
		return "reentrant"
	default:
		return "other"
	}
}
