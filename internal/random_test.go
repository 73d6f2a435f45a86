package internal

import "testing"

func TestSessionIDRoundTrip(t *testing.T) {
	sid, err := NewSessionID()
	if err != nil {
		t.Fatalf("new session id: %v", err)
	}
	parsed, err := ParseSessionID(sid.String())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed != sid {
		t.Fatal("expected parsed id to match")
	}
	if _, err := ParseSessionID("short"); err == nil {
		t.Fatal("expected size error")
	}
}

func TestSessionIDStringsAreDistinct(t *testing.T) {
	seen := make(map[string]struct{}, 100)
	for i := 0; i < 100; i++ {
		id, err := NewSessionIDString()
		if err != nil {
			t.Fatalf("new id: %v", err)
		}
		if _, dup := seen[id]; dup {
			t.Fatalf("duplicate id %q", id)
		}
		seen[id] = struct{}{}
	}
}

func TestResetTokenHashing(t *testing.T) {
	tok, err := NewResetToken(32)
	if err != nil {
		t.Fatalf("new token: %v", err)
	}
	if HashResetToken(tok) != HashResetToken(tok) {
		t.Fatal("expected stable hash")
	}
	if len(HashResetToken(tok)) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(HashResetToken(tok)))
	}
	if _, err := NewResetToken(8); err == nil {
		t.Fatal("expected short token rejection")
	}
}
