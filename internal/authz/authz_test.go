package authz

import (
	"bytes"
	"testing"
)

func newTestIssuer(t *testing.T) (*Issuer, *Authority) {
	t.Helper()
	pub, priv, err := GenerateKeypair()
	if err != nil {
		t.Fatal(err)
	}
	issuer, err := NewIssuer(priv)
	if err != nil {
		t.Fatal(err)
	}
	authority, err := NewAuthority(pub)
	if err != nil {
		t.Fatal(err)
	}
	return issuer, authority
}

func TestVerifyAcceptsIssuedProof(t *testing.T) {
	issuer, authority := newTestIssuer(t)
	proof := issuer.Issue(RoleWhitelisted, "0xabc")
	if !authority.Verify(RoleWhitelisted, "0xabc", nil, proof) {
		t.Fatal("valid proof rejected")
	}
}

func TestVerifyBindsSubject(t *testing.T) {
	issuer, authority := newTestIssuer(t)
	proof := issuer.Issue(RoleWhitelisted, "0xaaa")
	if authority.Verify(RoleWhitelisted, "0xbbb", nil, proof) {
		t.Fatal("proof for one subject accepted for another")
	}
}

func TestVerifyBindsRole(t *testing.T) {
	issuer, authority := newTestIssuer(t)
	proof := issuer.Issue(RoleWhitelisted, "0xaaa")
	if authority.Verify(RoleCaptchaSolved, "0xaaa", nil, proof) {
		t.Fatal("proof issued for one role accepted for another")
	}
}

func TestVerifyBindsBoundData(t *testing.T) {
	issuer, authority := newTestIssuer(t)
	proof := issuer.Issue(RoleCaptchaSolved, "0xaaa", []byte("nonce-1"))
	if !authority.Verify(RoleCaptchaSolved, "0xaaa", [][]byte{[]byte("nonce-1")}, proof) {
		t.Fatal("proof with matching bound data rejected")
	}
	if authority.Verify(RoleCaptchaSolved, "0xaaa", [][]byte{[]byte("nonce-2")}, proof) {
		t.Fatal("proof accepted with different bound data")
	}
	if authority.Verify(RoleCaptchaSolved, "0xaaa", nil, proof) {
		t.Fatal("proof accepted with bound data dropped")
	}
}

func TestRotationInvalidatesOutstandingProofs(t *testing.T) {
	issuer, authority := newTestIssuer(t)
	proof := issuer.Issue(RoleWhitelisted, "0xaaa")
	if !authority.Verify(RoleWhitelisted, "0xaaa", nil, proof) {
		t.Fatal("proof rejected before rotation")
	}

	newPub, newPriv, err := GenerateKeypair()
	if err != nil {
		t.Fatal(err)
	}
	if err := authority.Rotate(newPub); err != nil {
		t.Fatal(err)
	}
	if authority.Verify(RoleWhitelisted, "0xaaa", nil, proof) {
		t.Fatal("pre-rotation proof still accepted")
	}

	newIssuer, err := NewIssuer(newPriv)
	if err != nil {
		t.Fatal(err)
	}
	fresh := newIssuer.Issue(RoleWhitelisted, "0xaaa")
	if !authority.Verify(RoleWhitelisted, "0xaaa", nil, fresh) {
		t.Fatal("proof under new authority rejected")
	}
}

func TestVerifyMalformedProofDenies(t *testing.T) {
	issuer, authority := newTestIssuer(t)
	proof := issuer.Issue(RoleWhitelisted, "0xaaa")

	cases := map[string][]byte{
		"nil":       nil,
		"empty":     {},
		"short":     proof[:10],
		"truncated": proof[:len(proof)-1],
		"flipped": func() []byte {
			cp := append([]byte(nil), proof...)
			cp[0] ^= 0xff
			return cp
		}(),
	}
	for name, p := range cases {
		if authority.Verify(RoleWhitelisted, "0xaaa", nil, p) {
			t.Fatalf("%s proof accepted", name)
		}
	}
	if authority.Verify(Role("made-up"), "0xaaa", nil, proof) {
		t.Fatal("unknown role accepted")
	}
	if authority.Verify(RoleWhitelisted, "", nil, proof) {
		t.Fatal("empty subject accepted")
	}
}

func TestDigestFieldBoundaries(t *testing.T) {
	// Length prefixes must keep ("ab","c") and ("a","bc") apart.
	a := Digest(RoleWhitelisted, "ab", []byte("c"))
	b := Digest(RoleWhitelisted, "a", []byte("bc"))
	if a == b {
		t.Fatal("digest collision across field boundaries")
	}
}

func TestProofWireRoundTrip(t *testing.T) {
	issuer, _ := newTestIssuer(t)
	proof := issuer.Issue(RoleCaptchaSolved, "0xaaa")
	decoded, err := DecodeProof(EncodeProof(proof))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(decoded, proof) {
		t.Fatal("proof changed across wire encoding")
	}
	if _, err := DecodeProof("not base64!!"); err == nil {
		t.Fatal("expected decode error")
	}
}

func TestParsePublicKey(t *testing.T) {
	pub, _, err := GenerateKeypair()
	if err != nil {
		t.Fatal(err)
	}
	parsed, err := ParsePublicKey(EncodePublicKey(pub))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(parsed, pub) {
		t.Fatal("public key changed across encoding")
	}
	if _, err := ParsePublicKey("abcd"); err == nil {
		t.Fatal("expected error for short key")
	}
}
