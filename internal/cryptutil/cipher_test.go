package cryptutil

import (
	"bytes"
	"testing"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := bytes.Repeat([]byte{0x11}, KeySize)
	c, err := New(key)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ct, err := c.EncryptString("hunter2")
	if err != nil {
		t.Fatalf("EncryptString: %v", err)
	}
	pt, err := c.DecryptString(ct)
	if err != nil {
		t.Fatalf("DecryptString: %v", err)
	}
	if pt != "hunter2" {
		t.Fatalf("round trip = %q, want %q", pt, "hunter2")
	}
}

func TestEncryptIsNonDeterministic(t *testing.T) {
	key := bytes.Repeat([]byte{0x22}, KeySize)
	c, _ := New(key)
	a, _ := c.EncryptString("same plaintext")
	b, _ := c.EncryptString("same plaintext")
	if a == b {
		t.Fatal("expected distinct ciphertexts from distinct nonces")
	}
}

func TestNewRejectsBadKeySize(t *testing.T) {
	if _, err := New([]byte("too short")); err != ErrInvalidKeySize {
		t.Fatalf("New with short key = %v, want ErrInvalidKeySize", err)
	}
}

func TestDecryptRejectsTruncatedCiphertext(t *testing.T) {
	key := bytes.Repeat([]byte{0x33}, KeySize)
	c, _ := New(key)
	if _, err := c.DecryptString("dG9vc2hvcnQ="); err == nil {
		t.Fatal("expected error decrypting truncated ciphertext")
	}
}
