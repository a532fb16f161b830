package sale

import (
	"time"

	"github.com/holiman/uint256"
)

// phase holds the parameters and mutable counters of one sale window. It is
// not safe for concurrent use on its own; the engine's critical section
// covers every call.
type phase struct {
	kind      PhaseKind
	params    Params
	totalBuys uint64
	buys      map[string]uint64
}

func newPhase(kind PhaseKind, params Params) *phase {
	return &phase{
		kind:   kind,
		params: params,
		buys:   make(map[string]uint64),
	}
}

// inWindow reports whether now falls inside the inclusive [start, end] range.
func (p *phase) inWindow(now time.Time) bool {
	return !now.Before(p.params.Start) && !now.After(p.params.End)
}

// admit computes the units the paid value buys and checks both quota caps,
// first violation wins. On success both counters advance; a phase is never
// left half-updated because nothing mutates before the last check.
//
// Units are paid/price with integer division. The remainder of a non-exact
// payment is not refunded; the whole paid value accrues to the vault. This
// is a documented policy choice, applied identically to both phases.
func (p *phase) admit(identity string, paid *uint256.Int) (uint64, error) {
	if paid == nil {
		return 0, ErrBelowMinimum
	}
	q := new(uint256.Int).Div(paid, p.params.Price)
	if q.IsZero() {
		return 0, ErrBelowMinimum
	}
	// A quotient beyond uint64 cannot fit under any cap.
	if !q.IsUint64() {
		return 0, ErrUserCapExceeded
	}
	units := q.Uint64()
	// Subtraction form: the additive check wraps when units is near 2^64.
	if units > p.params.UserMaxBuys-p.buys[identity] {
		return 0, ErrUserCapExceeded
	}
	if units > p.params.TotalMaxBuys-p.totalBuys {
		return 0, ErrPhaseSoldOut
	}
	p.buys[identity] += units
	p.totalBuys += units
	return units, nil
}

// revert undoes a prior admit when a later step of the purchase fails. The
// two updates form one logical step with admit, so only the engine's
// critical section ever calls it.
func (p *phase) revert(identity string, units uint64) {
	p.buys[identity] -= units
	if p.buys[identity] == 0 {
		delete(p.buys, identity)
	}
	p.totalBuys -= units
}

func (p *phase) status() PhaseStatus {
	return PhaseStatus{
		Kind:      p.kind,
		Params:    p.params,
		TotalBuys: p.totalBuys,
	}
}

func (p *phase) buysOf(identity string) uint64 {
	return p.buys[identity]
}
