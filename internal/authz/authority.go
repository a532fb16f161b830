package authz

import (
	"crypto/ed25519"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
)

var (
	// ErrInvalidKey indicates a public key of the wrong size.
	ErrInvalidKey = errors.New("authz: invalid ed25519 public key")
)

// Authority verifies proofs against the currently trusted signer. Rotating
// the key invalidates every previously issued proof for every role at once,
// because verification is always against the current value; no revocation
// bookkeeping exists or is needed.
type Authority struct {
	mu  sync.RWMutex
	key ed25519.PublicKey
}

// NewAuthority builds an Authority trusting the given public key.
func NewAuthority(key ed25519.PublicKey) (*Authority, error) {
	if len(key) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidKey, len(key))
	}
	cp := make(ed25519.PublicKey, ed25519.PublicKeySize)
	copy(cp, key)
	return &Authority{key: cp}, nil
}

// Key returns the currently trusted public key.
func (a *Authority) Key() ed25519.PublicKey {
	a.mu.RLock()
	defer a.mu.RUnlock()
	cp := make(ed25519.PublicKey, len(a.key))
	copy(cp, a.key)
	return cp
}

// Rotate replaces the trusted signer.
func (a *Authority) Rotate(key ed25519.PublicKey) error {
	if len(key) != ed25519.PublicKeySize {
		return fmt.Errorf("%w: %d bytes", ErrInvalidKey, len(key))
	}
	cp := make(ed25519.PublicKey, ed25519.PublicKeySize)
	copy(cp, key)
	a.mu.Lock()
	a.key = cp
	a.mu.Unlock()
	return nil
}

// Verify checks that proof is a signature by the current authority over the
// canonical digest of (role, subject, bound...). Malformed proofs deny;
// they never error or panic.
func (a *Authority) Verify(role Role, subject string, bound [][]byte, proof []byte) bool {
	if !role.Valid() || subject == "" {
		return false
	}
	if len(proof) != ed25519.SignatureSize {
		return false
	}
	digest := Digest(role, subject, bound...)
	a.mu.RLock()
	key := a.key
	a.mu.RUnlock()
	return ed25519.Verify(key, digest[:], proof)
}

// DecodeProof decodes the wire form of a proof (standard base64).
func DecodeProof(s string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("authz: invalid proof encoding: %w", err)
	}
	return raw, nil
}

// EncodeProof renders a raw signature in its wire form.
func EncodeProof(proof []byte) string {
	return base64.StdEncoding.EncodeToString(proof)
}

// ParsePublicKey decodes a hex-encoded ed25519 public key, the format used
// in configuration and over the admin API.
func ParsePublicKey(s string) (ed25519.PublicKey, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}
	if len(raw) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: %d bytes", ErrInvalidKey, len(raw))
	}
	return ed25519.PublicKey(raw), nil
}

// EncodePublicKey renders a public key in its configuration form.
func EncodePublicKey(key ed25519.PublicKey) string {
	return hex.EncodeToString(key)
}
