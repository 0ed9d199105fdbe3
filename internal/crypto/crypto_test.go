package crypto

import (
	"bytes"
	"testing"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	aead, err := New(key)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	cases := [][]byte{
		[]byte(""),
		[]byte("hi"),
		[]byte("need investment urgently"),
		bytes.Repeat([]byte("x"), 1<<20), // 1 MiB boundary
	}

	for _, want := range cases {
		ct, err := aead.Encrypt(want)
		if err != nil {
			t.Fatalf("Encrypt: %v", err)
		}
		got, err := aead.Decrypt(ct)
		if err != nil {
			t.Fatalf("Decrypt: %v", err)
		}
		if !bytes.Equal(got, want) {
			t.Fatalf("round trip mismatch: got %q want %q", got, want)
		}
	}
}

func TestDecryptCorruptRowIsNonFatal(t *testing.T) {
	key, _ := GenerateKey()
	aead, _ := New(key)

	ct, err := aead.Encrypt([]byte("hello"))
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	ct[len(ct)-1] ^= 0xFF // flip a tag byte

	if _, err := aead.Decrypt(ct); err != ErrDecrypt {
		t.Fatalf("expected ErrDecrypt, got %v", err)
	}
}

func TestNewRejectsWrongKeySize(t *testing.T) {
	if _, err := New([]byte("too-short")); err != ErrKeyInvalid {
		t.Fatalf("expected ErrKeyInvalid, got %v", err)
	}
}
