// Command prooftool generates authority keypairs and signs authorization
// proofs, standing in for the off-system signing service during development.
package main

import (
	"crypto/ed25519"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"strings"

	"mintgate.org/internal/authz"
)

func main() {
	if len(os.Args) < 2 {
		usage()
	}
	switch os.Args[1] {
	case "keygen":
		runKeygen()
	case "issue":
		runIssue(os.Args[2:])
	case "verify":
		runVerify(os.Args[2:])
	default:
		usage()
	}
}

func runKeygen() {
	pub, priv, err := authz.GenerateKeypair()
	if err != nil {
		fatal("keygen: %v", err)
	}
	fmt.Printf("public:  %s\n", authz.EncodePublicKey(pub))
	fmt.Printf("private: %s\n", hex.EncodeToString(priv))
}

func runIssue(args []string) {
	fs := flag.NewFlagSet("issue", flag.ExitOnError)
	var (
		keyHex  = fs.String("key", os.Getenv("MINTGATE_AUTHORITY_PRIVATE_KEY"), "hex ed25519 private key")
		role    = fs.String("role", "", "proof role (is-whitelisted | captcha-solved)")
		subject = fs.String("subject", "", "buyer address the proof is bound to")
	)
	_ = fs.Parse(args)

	r, err := authz.ParseRole(*role)
	if err != nil {
		fatal("issue: %v", err)
	}
	subj := strings.ToLower(strings.TrimSpace(*subject))
	if subj == "" {
		fatal("issue: -subject is required")
	}
	priv, err := parsePrivateKey(*keyHex)
	if err != nil {
		fatal("issue: %v", err)
	}
	issuer, err := authz.NewIssuer(priv)
	if err != nil {
		fatal("issue: %v", err)
	}
	fmt.Println(authz.EncodeProof(issuer.Issue(r, subj)))
}

func runVerify(args []string) {
	fs := flag.NewFlagSet("verify", flag.ExitOnError)
	var (
		keyHex  = fs.String("key", os.Getenv("MINTGATE_AUTHORITY_KEY"), "hex ed25519 public key")
		role    = fs.String("role", "", "proof role (is-whitelisted | captcha-solved)")
		subject = fs.String("subject", "", "buyer address the proof is bound to")
		proof   = fs.String("proof", "", "base64 proof to check")
	)
	_ = fs.Parse(args)

	r, err := authz.ParseRole(*role)
	if err != nil {
		fatal("verify: %v", err)
	}
	pub, err := authz.ParsePublicKey(*keyHex)
	if err != nil {
		fatal("verify: %v", err)
	}
	authority, err := authz.NewAuthority(pub)
	if err != nil {
		fatal("verify: %v", err)
	}
	sig, err := authz.DecodeProof(*proof)
	if err != nil {
		fatal("verify: %v", err)
	}
	if !authority.Verify(r, strings.ToLower(strings.TrimSpace(*subject)), nil, sig) {
		fmt.Println("verify: FAIL")
		os.Exit(1)
	}
	fmt.Println("verify: PASS")
}

func parsePrivateKey(s string) (ed25519.PrivateKey, error) {
	raw, err := hex.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("invalid hex private key: %w", err)
	}
	if len(raw) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("private key must be %d bytes, got %d", ed25519.PrivateKeySize, len(raw))
	}
	return ed25519.PrivateKey(raw), nil
}

func fatal(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: %s keygen | issue -key <hex> -role <role> -subject <address> | verify -key <hex> -role <role> -subject <address> -proof <base64>\n", os.Args[0])
	os.Exit(1)
}
