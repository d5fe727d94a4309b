// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2025-2026 SecurityAnalyzerPro contributors
// https://github.com/jayanthkumarak/SecurityAnalyzerPro-sub000

// Package vault manages the master symmetric key and the redaction of
// sensitive fields before data leaves the trust boundary.
package vault

import (
	"encoding/hex"
	"regexp"
	"strings"
	"sync"

	"github.com/jayanthkumarak/SecurityAnalyzerPro-sub000/internal/pkg/crypto"
	"github.com/jayanthkumarak/SecurityAnalyzerPro-sub000/internal/pkg/errors"
	"github.com/jayanthkumarak/SecurityAnalyzerPro-sub000/internal/pkg/logger"
)

// Algorithm is the authenticated encryption scheme used by the vault.
const Algorithm = "aes-256-gcm"

// associatedData binds every ciphertext to this application's identity so
// bundles cannot be replayed into another consumer of the same key.
var associatedData = []byte("securityanalyzerpro.vault.v1")

// Bundle is the result of an Encrypt call. All fields are hex-encoded.
type Bundle struct {
	Ciphertext string `json:"ciphertext"`
	IV         string `json:"iv"`
	AuthTag    string `json:"auth_tag"`
	Algorithm  string `json:"algorithm"`
}

// Vault holds the master key and the encryptor derived from it.
type Vault struct {
	mu     sync.Mutex
	enc    *crypto.AESEncryptor
	key    []byte
	closed bool
	logger *logger.Logger
}

// Open loads the master key from keyPath, generating and persisting a fresh
// one with owner-only access on first use.
func Open(keyPath string, log *logger.Logger) (*Vault, error) {
	if log == nil {
		log = logger.Nop()
	}

	key, err := crypto.LoadOrCreateKey(keyPath)
	if err != nil {
		return nil, err
	}

	enc, err := crypto.NewAESEncryptorFromBytes(key)
	if err != nil {
		crypto.Zeroize(key)
		return nil, err
	}

	log.Named("vault").Debug("vault opened", "key_path", keyPath)

	return &Vault{enc: enc, key: key, logger: log.Named("vault")}, nil
}

// NewFromKey creates a vault from an in-memory key. The vault takes
// ownership of the slice and zeroizes it on Close.
func NewFromKey(key []byte, log *logger.Logger) (*Vault, error) {
	if log == nil {
		log = logger.Nop()
	}
	enc, err := crypto.NewAESEncryptorFromBytes(key)
	if err != nil {
		return nil, err
	}
	return &Vault{enc: enc, key: key, logger: log.Named("vault")}, nil
}

// Encrypt seals plaintext with a per-call random nonce and an integrity tag
// bound to the vault's associated data.
func (v *Vault) Encrypt(plaintext []byte) (*Bundle, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return nil, errors.Internal("vault is closed")
	}

	ciphertext, nonce, tag, err := v.enc.SealDetached(plaintext, associatedData)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "vault encrypt")
	}

	return &Bundle{
		Ciphertext: hex.EncodeToString(ciphertext),
		IV:         hex.EncodeToString(nonce),
		AuthTag:    hex.EncodeToString(tag),
		Algorithm:  Algorithm,
	}, nil
}

// Decrypt authenticates and opens a bundle. It fails closed: a bad tag,
// wrong algorithm, or malformed field returns an error and no plaintext.
func (v *Vault) Decrypt(bundle *Bundle) ([]byte, error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return nil, errors.Internal("vault is closed")
	}
	if bundle == nil || bundle.Algorithm != Algorithm {
		return nil, errors.Integrity("unsupported encryption bundle")
	}

	ciphertext, err := hex.DecodeString(bundle.Ciphertext)
	if err != nil {
		return nil, errors.Integrity("malformed ciphertext")
	}
	nonce, err := hex.DecodeString(bundle.IV)
	if err != nil {
		return nil, errors.Integrity("malformed iv")
	}
	tag, err := hex.DecodeString(bundle.AuthTag)
	if err != nil {
		return nil, errors.Integrity("malformed auth tag")
	}

	plaintext, err := v.enc.OpenDetached(ciphertext, nonce, tag, associatedData)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeIntegrity, "vault decrypt failed")
	}
	return plaintext, nil
}

// Close zeroizes the master key. The vault is unusable afterwards.
func (v *Vault) Close() {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.closed {
		return
	}
	crypto.Zeroize(v.key)
	v.closed = true
	v.logger.Debug("vault closed, key material zeroized")
}

// ============================================================================
// Sanitization
// ============================================================================

var (
	// Home-directory segments carry operator identities.
	unixHomeRe    = regexp.MustCompile(`(/(?:home|Users))/[^/\s]+`)
	windowsHomeRe = regexp.MustCompile(`(?i)([A-Z]:\\Users)\\[^\\\s]+`)
	ipv4Re        = regexp.MustCompile(`\b(\d{1,3}\.\d{1,3}\.\d{1,3})\.\d{1,3}\b`)
)

// SanitizeForAnalysis deep-copies a JSON-like value (maps, slices, scalars),
// redacting identifying material keyed by field name: keys containing "path"
// have user-specific path segments generalized, keys containing "user" are
// one-way hashed to a short fixed-width token, and keys containing "ip" have
// their final octet masked. Everything else passes through unchanged.
func (v *Vault) SanitizeForAnalysis(value any) any {
	return sanitizeValue("", value)
}

func sanitizeValue(key string, value any) any {
	switch typed := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for k, inner := range typed {
			out[k] = sanitizeValue(k, inner)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i, inner := range typed {
			out[i] = sanitizeValue(key, inner)
		}
		return out
	case string:
		return sanitizeString(key, typed)
	default:
		return value
	}
}

func sanitizeString(key, value string) string {
	lower := strings.ToLower(key)
	switch {
	case strings.Contains(lower, "path"):
		return GeneralizePath(value)
	case strings.Contains(lower, "user"):
		return HashIdentity(value)
	case strings.Contains(lower, "ip"):
		return MaskIP(value)
	}
	return value
}

// GeneralizePath replaces user-specific path segments with a placeholder.
func GeneralizePath(path string) string {
	path = unixHomeRe.ReplaceAllString(path, "$1/[user]")
	path = windowsHomeRe.ReplaceAllString(path, `$1\[user]`)
	return path
}

// HashIdentity one-way hashes an identity to a short fixed-width token.
func HashIdentity(identity string) string {
	return "usr_" + crypto.SHA256String(identity)[:12]
}

// MaskIP masks the final octet of an IPv4 address.
func MaskIP(ip string) string {
	return ipv4Re.ReplaceAllString(ip, "$1.xxx")
}
