package password

import (
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHasherVerifiesLegacyBcrypt(t *testing.T) {
	h, err := NewHasher(testArgon2Config())
	if err != nil {
		t.Fatalf("NewHasher error: %v", err)
	}

	legacy, err := bcrypt.GenerateFromPassword([]byte("legacy-password"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}

	ok, err := h.Verify("legacy-password", string(legacy))
	if err != nil || !ok {
		t.Fatalf("expected bcrypt verify to succeed: ok=%v err=%v", ok, err)
	}
	ok, err = h.Verify("wrong-password", string(legacy))
	if err != nil || ok {
		t.Fatalf("expected bcrypt mismatch: ok=%v err=%v", ok, err)
	}
	if !h.NeedsRehash(string(legacy)) {
		t.Fatal("expected bcrypt hash to need a rehash")
	}
}

func TestHasherArgonRoundTrip(t *testing.T) {
	h, err := NewHasher(testArgon2Config())
	if err != nil {
		t.Fatalf("NewHasher error: %v", err)
	}

	hash, err := h.Hash("correct-password-123")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	ok, err := h.Verify("correct-password-123", hash)
	if err != nil || !ok {
		t.Fatalf("expected verify to succeed: ok=%v err=%v", ok, err)
	}
	if h.NeedsRehash(hash) {
		t.Fatal("fresh hash must not need a rehash")
	}
}

func TestHasherRejectsUnknownFormat(t *testing.T) {
	h, err := NewHasher(testArgon2Config())
	if err != nil {
		t.Fatalf("NewHasher error: %v", err)
	}
	if _, err := h.Verify("whatever-password", "plaintext"); !errors.Is(err, ErrUnsupportedHash) {
		t.Fatalf("expected ErrUnsupportedHash, got %v", err)
	}
}
