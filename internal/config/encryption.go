// Palace Circulation - Library Vendor Circulation Integration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/circulation

package config

// Patron bearer tokens kept by the badger and redis credential stores are
// sealed with AES-256-GCM under a key derived from
// CREDENTIAL_ENCRYPTION_SECRET with HKDF-SHA256. The caller passes the
// credential's natural key as the binding, so a sealed token copied under
// another patron's key fails to open:
//
//	enc, err := NewCredentialEncryptor(cfg.Credentials.EncryptionSecret)
//	sealed, err := enc.Seal(token, []byte("Overdrive|...|7|3"))
//	token, err = enc.Open(sealed, []byte("Overdrive|...|7|3"))

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

const (
	hkdfSalt = "circulation-vendor-credentials"
	hkdfInfo = "patron-token-seal-v1"

	// sealedPrefix versions the sealed format.
	sealedPrefix = "v1:"
)

var (
	ErrEmptySecret      = errors.New("encryption secret cannot be empty")
	ErrEmptyPlaintext   = errors.New("plaintext cannot be empty")
	ErrMalformedSealed  = errors.New("malformed sealed credential")
	ErrDecryptionFailed = errors.New("credential does not open with this secret and binding")
)

// CredentialEncryptor seals vendor tokens at rest.
type CredentialEncryptor struct {
	aead cipher.AEAD
}

// NewCredentialEncryptor returns ErrEmptySecret when secret is empty.
func NewCredentialEncryptor(secret string) (*CredentialEncryptor, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	key := make([]byte, 32)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), []byte(hkdfSalt), []byte(hkdfInfo)), key); err != nil {
		return nil, fmt.Errorf("derive credential key: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("create AES cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}
	return &CredentialEncryptor{aead: aead}, nil
}

// Seal returns "v1:" followed by base64url(nonce || ciphertext || tag).
func (e *CredentialEncryptor) Seal(plaintext string, binding []byte) (string, error) {
	if plaintext == "" {
		return "", ErrEmptyPlaintext
	}
	nonce := make([]byte, e.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}
	sealed := e.aead.Seal(nonce, nonce, []byte(plaintext), binding)
	return sealedPrefix + base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal. The binding must match the one used to seal.
func (e *CredentialEncryptor) Open(sealed string, binding []byte) (string, error) {
	body, ok := strings.CutPrefix(sealed, sealedPrefix)
	if !ok {
		return "", ErrMalformedSealed
	}
	data, err := base64.RawURLEncoding.DecodeString(body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformedSealed, err)
	}
	n := e.aead.NonceSize()
	if len(data) < n+e.aead.Overhead()+1 {
		return "", ErrMalformedSealed
	}
	plaintext, err := e.aead.Open(nil, data[:n], data[n:], binding)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plaintext), nil
}

// IsSealed reports whether s looks like Seal output. Stores use it to read
// tokens written before encryption was switched on.
func IsSealed(s string) bool {
	return strings.HasPrefix(s, sealedPrefix)
}

// MaskCredential returns a credential safe to display, keeping only the
// last four characters of long values.
func MaskCredential(credential string) string {
	if credential == "" {
		return ""
	}
	if len(credential) <= 8 {
		return "****"
	}
	return "****..." + credential[len(credential)-4:]
}
