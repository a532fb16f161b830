package authz

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"
)

// Issuer signs proofs. It lives off-system in production (the authority's
// signing service); inside this repo it backs the prooftool CLI and tests.
type Issuer struct {
	priv ed25519.PrivateKey
}

// NewIssuer wraps an ed25519 private key.
func NewIssuer(priv ed25519.PrivateKey) (*Issuer, error) {
	if len(priv) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("authz: invalid ed25519 private key: %d bytes", len(priv))
	}
	return &Issuer{priv: priv}, nil
}

// GenerateKeypair creates a fresh authority keypair.
func GenerateKeypair() (ed25519.PublicKey, ed25519.PrivateKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, nil, fmt.Errorf("authz: generate keypair: %w", err)
	}
	return pub, priv, nil
}

// Public returns the verifying key for this issuer.
func (i *Issuer) Public() ed25519.PublicKey {
	return i.priv.Public().(ed25519.PublicKey)
}

// Issue signs the canonical digest of (role, subject, bound...).
func (i *Issuer) Issue(role Role, subject string, bound ...[]byte) []byte {
	digest := Digest(role, subject, bound...)
	return ed25519.Sign(i.priv, digest[:])
}
