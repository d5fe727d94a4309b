// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2025-2026 SecurityAnalyzerPro contributors
// https://github.com/jayanthkumarak/SecurityAnalyzerPro-sub000

package crypto

import (
	"bytes"
	"encoding/hex"
	"errors"
	"testing"
)

// ============================================================================
// NewAESEncryptorFromBytes / GenerateKey
// ============================================================================

func TestNewAESEncryptorFromBytes(t *testing.T) {
	key := make([]byte, KeySize)
	enc, err := NewAESEncryptorFromBytes(key)
	if err != nil {
		t.Fatalf("NewAESEncryptorFromBytes() error: %v", err)
	}
	if enc == nil {
		t.Fatal("NewAESEncryptorFromBytes() returned nil")
	}
}

func TestNewAESEncryptorFromBytes_WrongLength(t *testing.T) {
	for _, n := range []int{0, 16, 31, 33, 64} {
		if _, err := NewAESEncryptorFromBytes(make([]byte, n)); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("%d bytes: expected ErrInvalidKey, got: %v", n, err)
		}
	}
}

func TestGenerateKey(t *testing.T) {
	k1, err := GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey() error: %v", err)
	}

	raw, err := hex.DecodeString(k1)
	if err != nil {
		t.Fatalf("GenerateKey() output is not hex: %v", err)
	}
	if len(raw) != KeySize {
		t.Errorf("decoded key length = %d, want %d", len(raw), KeySize)
	}

	k2, _ := GenerateKey()
	if k1 == k2 {
		t.Error("GenerateKey() produced the same key twice")
	}
}

// ============================================================================
// SealDetached / OpenDetached
// ============================================================================

func newTestEncryptor(t *testing.T) *AESEncryptor {
	t.Helper()
	key, _ := GenerateKey()
	raw, _ := hex.DecodeString(key)
	enc, err := NewAESEncryptorFromBytes(raw)
	if err != nil {
		t.Fatalf("NewAESEncryptorFromBytes() error: %v", err)
	}
	return enc
}

func TestSealOpenDetached_RoundTrip(t *testing.T) {
	enc := newTestEncryptor(t)
	aad := []byte("app-identity")

	for _, plaintext := range [][]byte{
		[]byte("case notes: suspect drive imaged at 09:14"),
		{},
		bytes.Repeat([]byte{0xAB}, 4096),
	} {
		ct, nonce, tag, err := enc.SealDetached(plaintext, aad)
		if err != nil {
			t.Fatalf("SealDetached() error: %v", err)
		}
		if len(tag) != gcmTagSize {
			t.Fatalf("tag length = %d, want %d", len(tag), gcmTagSize)
		}

		got, err := enc.OpenDetached(ct, nonce, tag, aad)
		if err != nil {
			t.Fatalf("OpenDetached() error: %v", err)
		}
		if !bytes.Equal(got, plaintext) {
			t.Errorf("round trip mismatch: got %d bytes, want %d", len(got), len(plaintext))
		}
	}
}

func TestSealDetached_RandomNonce(t *testing.T) {
	enc := newTestEncryptor(t)
	plaintext := []byte("same input")

	_, n1, _, _ := enc.SealDetached(plaintext, nil)
	_, n2, _, _ := enc.SealDetached(plaintext, nil)

	if bytes.Equal(n1, n2) {
		t.Error("SealDetached should generate a fresh nonce per call")
	}
}

func TestOpenDetached_TamperedCiphertext(t *testing.T) {
	enc := newTestEncryptor(t)
	ct, nonce, tag, _ := enc.SealDetached([]byte("evidence hash list"), nil)

	for i := range ct {
		mutated := append([]byte(nil), ct...)
		mutated[i] ^= 0x01
		if _, err := enc.OpenDetached(mutated, nonce, tag, nil); !errors.Is(err, ErrDecryptionFailed) {
			t.Fatalf("byte %d: expected ErrDecryptionFailed, got: %v", i, err)
		}
	}
}

func TestOpenDetached_TamperedTag(t *testing.T) {
	enc := newTestEncryptor(t)
	ct, nonce, tag, _ := enc.SealDetached([]byte("payload"), nil)

	tag[0] ^= 0x01
	if _, err := enc.OpenDetached(ct, nonce, tag, nil); !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("expected ErrDecryptionFailed for tampered tag, got: %v", err)
	}
}

func TestOpenDetached_WrongAAD(t *testing.T) {
	enc := newTestEncryptor(t)
	ct, nonce, tag, _ := enc.SealDetached([]byte("payload"), []byte("app-a"))

	if _, err := enc.OpenDetached(ct, nonce, tag, []byte("app-b")); !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("expected ErrDecryptionFailed for AAD mismatch, got: %v", err)
	}
}

func TestOpenDetached_WrongKey(t *testing.T) {
	enc1 := newTestEncryptor(t)
	enc2 := newTestEncryptor(t)

	ct, nonce, tag, _ := enc1.SealDetached([]byte("payload"), nil)
	if _, err := enc2.OpenDetached(ct, nonce, tag, nil); !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("expected ErrDecryptionFailed with wrong key, got: %v", err)
	}
}

func TestOpenDetached_BadNonceOrTagLength(t *testing.T) {
	enc := newTestEncryptor(t)
	ct, nonce, tag, _ := enc.SealDetached([]byte("payload"), nil)

	if _, err := enc.OpenDetached(ct, nonce[:len(nonce)-1], tag, nil); !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("expected ErrDecryptionFailed for short nonce, got: %v", err)
	}
	if _, err := enc.OpenDetached(ct, nonce, tag[:gcmTagSize-1], nil); !errors.Is(err, ErrDecryptionFailed) {
		t.Errorf("expected ErrDecryptionFailed for short tag, got: %v", err)
	}
}
