package crypto

import (
	"bytes"
	"testing"
)

func TestHashPasswordVerifies(t *testing.T) {
	hash, err := HashPassword("Testing123!")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(hash) == 0 {
		t.Fatalf("expected non-empty hash")
	}
	if bytes.Contains(hash, []byte("Testing123!")) {
		t.Fatalf("hash must not embed the plaintext")
	}
	if err := ComparePassword(hash, "Testing123!"); err != nil {
		t.Fatalf("expected password to verify: %v", err)
	}
}

func TestComparePasswordRejectsWrongPassword(t *testing.T) {
	hash, err := HashPassword("Testing123!")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := ComparePassword(hash, "testing123!"); err == nil {
		t.Fatalf("expected mismatch error")
	}
}

func TestHashPasswordSaltsPerCall(t *testing.T) {
	first, err := HashPassword("Testing123!")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := HashPassword("Testing123!")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bytes.Equal(first, second) {
		t.Fatalf("expected distinct salted hashes")
	}
	if err := ComparePassword(first, "Testing123!"); err != nil {
		t.Fatalf("first hash failed to verify: %v", err)
	}
	if err := ComparePassword(second, "Testing123!"); err != nil {
		t.Fatalf("second hash failed to verify: %v", err)
	}
}

func TestComparePasswordMalformedHash(t *testing.T) {
	if err := ComparePassword([]byte("not-a-bcrypt-digest"), "Testing123!"); err == nil {
		t.Fatalf("expected malformed hash to be rejected")
	}
}
