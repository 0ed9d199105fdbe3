// Package crypto provides authenticated symmetric encryption for
// message payloads: AES-256-GCM under a single process-wide key.
// There is no per-tenant data-key wrapping to do here.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"io"
)

// KeySize is the required AEAD key length: 32 bytes for AES-256.
const KeySize = 32

var (
	// ErrKeyInvalid is returned when a provided key is not a valid
	// AEAD key (wrong size, or fails to construct an AES cipher).
	ErrKeyInvalid = errors.New("crypto: invalid key, must be 32 bytes for AES-256-GCM")
	// ErrDecrypt is returned on tag mismatch or corrupt ciphertext.
	// Callers MUST treat a single-row decrypt failure as non-fatal.
	ErrDecrypt = errors.New("crypto: decryption failed")
)

// AEAD wraps a single 32-byte key and exposes Encrypt/Decrypt over
// opaque byte slices, matching the Message.TextCipher column type.
type AEAD struct {
	key []byte
}

// New validates key and returns an AEAD bound to it.
func New(key []byte) (*AEAD, error) {
	if len(key) != KeySize {
		return nil, ErrKeyInvalid
	}
	if _, err := aes.NewCipher(key); err != nil {
		return nil, ErrKeyInvalid
	}
	return &AEAD{key: key}, nil
}

// GenerateKey returns a fresh random 32-byte AEAD key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, err
	}
	return key, nil
}

// Encrypt seals plaintext, prepending a random nonce to the returned
// ciphertext so Decrypt is self-contained.
func (a *AEAD) Encrypt(plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(a.key)
	if err != nil {
		return nil, ErrKeyInvalid
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, ErrKeyInvalid
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt opens ciphertext produced by Encrypt. Any failure
// (truncated input, tag mismatch, wrong key) collapses to ErrDecrypt;
// callers skip the row and bump a metric rather than aborting.
func (a *AEAD) Decrypt(ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(a.key)
	if err != nil {
		return nil, ErrKeyInvalid
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, ErrKeyInvalid
	}

	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, ErrDecrypt
	}

	nonce, ct := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ct, nil)
	if err != nil {
		return nil, ErrDecrypt
	}
	return plaintext, nil
}
