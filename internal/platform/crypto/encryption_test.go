package crypto

import (
	"bytes"
	"errors"
	"strings"
	"testing"
)

const hexKey = "000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f"

func TestSealOpenRoundTrip(t *testing.T) {
	s, err := New(hexKey)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	sealed, err := s.SealString("JBSWY3DPEHPK3PXP")
	if err != nil {
		t.Fatalf("seal: %v", err)
	}
	if bytes.Contains(sealed, []byte("JBSWY3DPEHPK3PXP")) {
		t.Fatal("sealed value leaks plaintext")
	}
	plain, err := s.OpenString(sealed)
	if err != nil || plain != "JBSWY3DPEHPK3PXP" {
		t.Fatalf("open: %q %v", plain, err)
	}
}

func TestOpenRejectsTamperedData(t *testing.T) {
	s, _ := New(hexKey)
	sealed, _ := s.SealString("secret")
	sealed[len(sealed)-1] ^= 0xff
	if _, err := s.Open(sealed); err == nil {
		t.Fatal("expected authentication failure")
	}
	if _, err := s.Open([]byte{1, 2}); !errors.Is(err, ErrCiphertext) {
		t.Fatalf("expected short ciphertext error, got %v", err)
	}
}

func TestUnconfiguredSealer(t *testing.T) {
	s, err := New("")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if s.Configured() {
		t.Fatal("empty key must not be configured")
	}
	if _, err := s.SealString("x"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestNewRejectsShortKey(t *testing.T) {
	if _, err := New("too-short"); err == nil {
		t.Fatal("expected key length error")
	}
	if _, err := New(strings.Repeat("k!", 16)); err != nil {
		t.Fatalf("raw 32 byte key should work: %v", err)
	}
}
