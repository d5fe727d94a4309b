// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2025-2026 SecurityAnalyzerPro contributors
// https://github.com/jayanthkumarak/SecurityAnalyzerPro-sub000

package crypto

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LoadOrCreateKey loads a hex-encoded master key from path, generating and
// persisting a fresh random key with owner-only access if the file does not
// exist. The returned slice is the raw key; callers own its lifetime and
// should Zeroize it when done.
func LoadOrCreateKey(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err == nil {
		key, derr := hex.DecodeString(strings.TrimSpace(string(data)))
		if derr != nil {
			return nil, fmt.Errorf("%w: key file %s is not valid hex", ErrInvalidKey, path)
		}
		if len(key) != KeySize {
			return nil, fmt.Errorf("%w: key file %s holds %d bytes, need %d", ErrInvalidKey, path, len(key), KeySize)
		}
		return key, nil
	}
	if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read key file %s: %w", path, err)
	}

	key, err := RandomBytes(KeySize)
	if err != nil {
		return nil, err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create key directory %s: %w", dir, err)
	}
	if err := os.WriteFile(path, []byte(hex.EncodeToString(key)), 0600); err != nil {
		return nil, fmt.Errorf("persist key file %s: %w", path, err)
	}

	return key, nil
}

// Zeroize overwrites key material in place so it does not linger in memory
// after release.
func Zeroize(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
