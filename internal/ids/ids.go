package ids

import (
	mathrand "math/rand"
	"strings"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

// New returns a lexicographically sortable identifier suitable for storage keys.
func New() string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}

// Receipt returns an identifier for a committed purchase or direct
// allocation, prefixed so receipts are recognisable in logs and journals.
func Receipt() string {
	return "rcp_" + New()
}

// IsReceipt reports whether id looks like a receipt identifier.
func IsReceipt(id string) bool {
	return strings.HasPrefix(id, "rcp_") && len(id) == 4+ulid.EncodedSize
}
