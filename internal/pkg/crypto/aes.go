// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2025-2026 SecurityAnalyzerPro contributors
// https://github.com/jayanthkumarak/SecurityAnalyzerPro-sub000

// Package crypto provides the symmetric encryption, hashing, and randomness
// primitives used by the security core.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

// Errors returned by the encryptor.
var (
	ErrInvalidKey       = errors.New("crypto: invalid key")
	ErrDecryptionFailed = errors.New("crypto: decryption failed")
)

const (
	// KeySize is the AES-256 key length in bytes.
	KeySize = 32

	// gcmTagSize is the GCM authentication tag length in bytes.
	gcmTagSize = 16
)

// AESEncryptor performs AES-256-GCM authenticated encryption.
type AESEncryptor struct {
	aead cipher.AEAD
}

// NewAESEncryptorFromBytes creates an encryptor from a raw 32-byte key.
func NewAESEncryptorFromBytes(key []byte) (*AESEncryptor, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: need %d bytes, got %d", ErrInvalidKey, KeySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidKey, err)
	}

	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("create GCM: %w", err)
	}

	return &AESEncryptor{aead: aead}, nil
}

// GenerateKey generates a new random AES-256 key, hex-encoded.
func GenerateKey() (string, error) {
	key := make([]byte, KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return "", fmt.Errorf("generate key: %w", err)
	}
	return hex.EncodeToString(key), nil
}

// SealDetached encrypts plaintext with a fresh random nonce, binding the
// additional data into the authentication tag. The ciphertext and tag are
// returned separately so callers can store them as distinct fields.
func (e *AESEncryptor) SealDetached(plaintext, additionalData []byte) (ciphertext, nonce, tag []byte, err error) {
	nonce = make([]byte, e.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, nil, fmt.Errorf("generate nonce: %w", err)
	}

	sealed := e.aead.Seal(nil, nonce, plaintext, additionalData)
	split := len(sealed) - gcmTagSize
	return sealed[:split], nonce, sealed[split:], nil
}

// OpenDetached authenticates and decrypts a detached ciphertext/tag pair.
// It fails closed: any tag or AAD mismatch returns ErrDecryptionFailed and
// no plaintext.
func (e *AESEncryptor) OpenDetached(ciphertext, nonce, tag, additionalData []byte) ([]byte, error) {
	if len(nonce) != e.aead.NonceSize() {
		return nil, ErrDecryptionFailed
	}
	if len(tag) != gcmTagSize {
		return nil, ErrDecryptionFailed
	}

	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := e.aead.Open(nil, nonce, sealed, additionalData)
	if err != nil {
		return nil, ErrDecryptionFailed
	}
	return plaintext, nil
}
