package sale

// issuance is the single source of truth for whether more tokens may be
// created. Identifiers are 0-based, strictly sequential and never reused,
// across both phases and direct allocation, so uniqueness needs no
// existence check.
type issuance struct {
	totalBuys   uint64 // purchased units only
	totalIssued uint64 // every token ever minted
	maxTotal    uint64 // immutable global ceiling
}

// tokenRange is a contiguous run of freshly reserved identifiers.
type tokenRange struct {
	first uint64
	count uint64
}

// reserve checks the ceiling strictly before any mutation and, if amount
// fits, advances totalIssued and hands back the reserved range.
func (is *issuance) reserve(amount uint64) (tokenRange, error) {
	if amount == 0 {
		return tokenRange{}, ErrInvalidInput
	}
	newTotal := is.totalIssued + amount
	if newTotal < is.totalIssued || newTotal > is.maxTotal {
		return tokenRange{}, ErrCapacityExceeded
	}
	r := tokenRange{first: is.totalIssued, count: amount}
	is.totalIssued = newTotal
	return r, nil
}

// recordBuys tracks purchased units; direct allocations bypass this.
func (is *issuance) recordBuys(units uint64) {
	is.totalBuys += units
}
