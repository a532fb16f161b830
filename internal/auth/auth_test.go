package auth

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestGenerateAndValidate(t *testing.T) {
	t.Setenv("MINTGATE_AUTH_SECRET", "test-secret")
	ResetSecretForTests()
	t.Cleanup(ResetSecretForTests)

	token, err := GenerateToken("0xAbC", time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	address, err := ParseAndValidate(token)
	if err != nil {
		t.Fatal(err)
	}
	if address != "0xabc" {
		t.Fatalf("address=%q, want lower-cased subject", address)
	}
}

func TestGenerateRequiresAddressAndTTL(t *testing.T) {
	t.Setenv("MINTGATE_AUTH_SECRET", "test-secret")
	ResetSecretForTests()
	t.Cleanup(ResetSecretForTests)

	if _, err := GenerateToken("  ", time.Minute); err == nil {
		t.Fatal("empty address accepted")
	}
	if _, err := GenerateToken("0xabc", 0); err == nil {
		t.Fatal("zero ttl accepted")
	}
}

func TestValidateRejectsGarbage(t *testing.T) {
	t.Setenv("MINTGATE_AUTH_SECRET", "test-secret")
	ResetSecretForTests()
	t.Cleanup(ResetSecretForTests)

	for _, token := range []string{"", "not-a-jwt", "a.b.c"} {
		if _, err := ParseAndValidate(token); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("token %q: expected ErrInvalidToken, got %v", token, err)
		}
	}
}

func TestValidateRejectsForeignSecret(t *testing.T) {
	t.Setenv("MINTGATE_AUTH_SECRET", "secret-one")
	ResetSecretForTests()
	token, err := GenerateToken("0xabc", time.Minute)
	if err != nil {
		t.Fatal(err)
	}

	t.Setenv("MINTGATE_AUTH_SECRET", "secret-two")
	ResetSecretForTests()
	t.Cleanup(ResetSecretForTests)
	if _, err := ParseAndValidate(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken under rotated secret, got %v", err)
	}
}

func TestMissingSecret(t *testing.T) {
	t.Setenv("MINTGATE_AUTH_SECRET", "")
	ResetSecretForTests()
	t.Cleanup(ResetSecretForTests)

	if SupportsTokens() {
		t.Fatal("SupportsTokens true without secret")
	}
	if _, err := GenerateToken("0xabc", time.Minute); err == nil {
		t.Fatal("token generated without secret")
	}
}

func TestContextRoundTrip(t *testing.T) {
	ctx := ContextWithAddress(context.Background(), " 0xAbC ")
	address, ok := AddressFromContext(ctx)
	if !ok || address != "0xabc" {
		t.Fatalf("address=%q ok=%v", address, ok)
	}
	if _, ok := AddressFromContext(context.Background()); ok {
		t.Fatal("address found in empty context")
	}

	ctx = ContextWithToken(context.Background(), "raw-token")
	token, ok := TokenFromContext(ctx)
	if !ok || token != "raw-token" {
		t.Fatalf("token=%q ok=%v", token, ok)
	}
}
