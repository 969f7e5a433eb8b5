package cipher_test

import (
	"discreetx-backend/internal/cipher"
	"errors"
	"testing"
)

func TestRoundTrip(t *testing.T) {
	c, err := cipher.New("test-secret")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name      string
		plaintext string
	}{
		{"plain ascii", "hello world"},
		{"empty string", ""},
		{"unicode", "héllo wörld 你好 🎉"},
		{"newlines and control chars", "line one\nline two\ttabbed"},
		{"long content", string(make([]byte, 64*1024))},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			encrypted, err := c.Encrypt(tc.plaintext)
			if err != nil {
				t.Fatalf("Encrypt() failed: %v", err)
			}

			if encrypted == tc.plaintext && tc.plaintext != "" {
				t.Error("ciphertext equals plaintext")
			}

			decrypted, err := c.Decrypt(encrypted)
			if err != nil {
				t.Fatalf("Decrypt() failed: %v", err)
			}

			if decrypted != tc.plaintext {
				t.Errorf("round trip mismatch: got %q, want %q", decrypted, tc.plaintext)
			}
		})
	}
}

func TestDecryptMalformed(t *testing.T) {
	c, err := cipher.New("test-secret")
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name       string
		ciphertext string
	}{
		{"not base64", "!!! not base64 !!!"},
		{"too short", "YWJj"},
		{"valid base64 garbage", "YWJjZGVmZ2hpamtsbW5vcHFyc3R1dnd4eXo="},
		{"empty", ""},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := c.Decrypt(tc.ciphertext)
			if !errors.Is(err, cipher.ErrMalformedCiphertext) {
				t.Errorf("Decrypt(%q) error = %v, want ErrMalformedCiphertext", tc.ciphertext, err)
			}
		})
	}
}

func TestDifferentSecretsCannotDecrypt(t *testing.T) {
	c1, err := cipher.New("secret-one")
	if err != nil {
		t.Fatal(err)
	}
	c2, err := cipher.New("secret-two")
	if err != nil {
		t.Fatal(err)
	}

	encrypted, err := c1.Encrypt("confidential")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := c2.Decrypt(encrypted); !errors.Is(err, cipher.ErrMalformedCiphertext) {
		t.Errorf("Decrypt with wrong secret error = %v, want ErrMalformedCiphertext", err)
	}
}

func TestEmptySecretRejected(t *testing.T) {
	if _, err := cipher.New(""); err == nil {
		t.Error("New(\"\") should fail")
	}
}
