package cipher

import (
	"crypto/aes"
	stdcipher "crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"io"

	"golang.org/x/crypto/scrypt"
)

// Cipher encrypts message bodies and file URLs before they reach the store.
// AES-256-GCM with a key derived from the configured secret. Only the store
// ever sees ciphertext, every wire representation is plaintext.
type Cipher struct {
	aead stdcipher.AEAD
}

var ErrMalformedCiphertext = errors.New("malformed ciphertext")

var keySalt = []byte("discreetx.content.v1")

func New(secret string) (*Cipher, error) {
	if secret == "" {
		return nil, errors.New("cipher secret is empty")
	}

	key, err := scrypt.Key([]byte(secret), keySalt, 1<<15, 8, 1, 32)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	aead, err := stdcipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	return &Cipher{aead: aead}, nil
}

func (c *Cipher) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt fails with ErrMalformedCiphertext on anything that is not a value
// previously produced by Encrypt with the same secret.
func (c *Cipher) Decrypt(ciphertext string) (string, error) {
	sealed, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", ErrMalformedCiphertext
	}

	if len(sealed) < c.aead.NonceSize() {
		return "", ErrMalformedCiphertext
	}

	nonce, body := sealed[:c.aead.NonceSize()], sealed[c.aead.NonceSize():]
	plaintext, err := c.aead.Open(nil, nonce, body, nil)
	if err != nil {
		return "", ErrMalformedCiphertext
	}

	return string(plaintext), nil
}
