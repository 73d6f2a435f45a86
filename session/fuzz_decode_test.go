package session

import (
	"testing"
)

// FuzzSessionDecode exercises the binary session decoder with arbitrary inputs.
// Goal: no panics, no unexpected nil dereferences, graceful error handling.
func FuzzSessionDecode(f *testing.F) {
	sess := &Session{
		SessionID: "sid-fuzz",
		UserID:    "user1",
		Email:     "fuzz@example.com",
		Name:      "Fuzz",
		CreatedAt: 1700000000,
	}
	encoded, err := Encode(sess)
	if err == nil {
		f.Add(encoded)
	}

	// Empty and short inputs.
	f.Add([]byte{})
	f.Add([]byte{0})
	f.Add([]byte{1})
	f.Add([]byte{255, 255, 255})

	// Truncated at various offsets.
	if len(encoded) > 10 {
		f.Add(encoded[:10])
	}
	if len(encoded) > 30 {
		f.Add(encoded[:30])
	}

	f.Fuzz(func(t *testing.T, data []byte) {
		s, err := Decode(data)
		if err != nil {
			return
		}

		// A decoded session must survive a re-encode unchanged.
		again, err := Encode(s)
		if err != nil {
			t.Fatalf("re-encode: %v", err)
		}
		if string(again) != string(data) {
			t.Fatalf("re-encode mismatch")
		}
	})
}
