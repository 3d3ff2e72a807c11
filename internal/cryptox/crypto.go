// Package cryptox seals archived change sets with a key derived from an
// operator passphrase.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

const (
	SaltSize = 16
	KeySize  = 32
)

var ErrMalformed = errors.New("sealed payload is malformed")

// DeriveKey stretches passphrase into a 256-bit AES key with Argon2id.
func DeriveKey(passphrase []byte, salt []byte) []byte {
	return argon2.IDKey(passphrase, salt, 1, 64*1024, 4, KeySize)
}

func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// Seal encrypts plaintext with AES-GCM under key using a fresh random nonce.
//
// The key must be a valid AES key length (16, 24, or 32 bytes). The
// ciphertext and nonce are returned separately.
func Seal(plaintext, key []byte) (ciphertext, nonce []byte, err error) {
	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, nil, err
	}
	nonce, err = RandomBytes(aesgcm.NonceSize())
	if err != nil {
		return nil, nil, err
	}
	return aesgcm.Seal(nil, nonce, plaintext, nil), nonce, nil
}

// Open reverses Seal.
func Open(ciphertext, nonce, key []byte) ([]byte, error) {
	aesgcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(nonce) != aesgcm.NonceSize() {
		return nil, ErrMalformed
	}
	return aesgcm.Open(nil, nonce, ciphertext, nil)
}

// SealWithPassphrase derives a key from passphrase under a random salt and
// returns salt || nonce || ciphertext.
func SealWithPassphrase(plaintext, passphrase []byte) ([]byte, error) {
	salt, err := RandomBytes(SaltSize)
	if err != nil {
		return nil, err
	}
	ciphertext, nonce, err := Seal(plaintext, DeriveKey(passphrase, salt))
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(salt)+len(nonce)+len(ciphertext))
	out = append(out, salt...)
	out = append(out, nonce...)
	return append(out, ciphertext...), nil
}

func OpenWithPassphrase(sealed, passphrase []byte) ([]byte, error) {
	const nonceSize = 12
	if len(sealed) < SaltSize+nonceSize {
		return nil, ErrMalformed
	}
	salt := sealed[:SaltSize]
	nonce := sealed[SaltSize : SaltSize+nonceSize]
	plaintext, err := Open(sealed[SaltSize+nonceSize:], nonce, DeriveKey(passphrase, salt))
	if err != nil {
		return nil, fmt.Errorf("failed to open sealed payload: %w", err)
	}
	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
