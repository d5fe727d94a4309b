// SPDX-License-Identifier: AGPL-3.0-or-later
// Copyright (c) 2025-2026 SecurityAnalyzerPro contributors
// https://github.com/jayanthkumarak/SecurityAnalyzerPro-sub000

package crypto

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestLoadOrCreateKey_Generates(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "master.key")

	key, err := LoadOrCreateKey(path)
	if err != nil {
		t.Fatalf("LoadOrCreateKey() error: %v", err)
	}
	if len(key) != KeySize {
		t.Errorf("key length = %d, want %d", len(key), KeySize)
	}

	if runtime.GOOS != "windows" {
		info, err := os.Stat(path)
		if err != nil {
			t.Fatalf("stat key file: %v", err)
		}
		if perm := info.Mode().Perm(); perm != 0600 {
			t.Errorf("key file mode = %o, want 0600", perm)
		}
	}
}

func TestLoadOrCreateKey_LoadsExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "master.key")

	first, err := LoadOrCreateKey(path)
	if err != nil {
		t.Fatalf("first LoadOrCreateKey() error: %v", err)
	}
	second, err := LoadOrCreateKey(path)
	if err != nil {
		t.Fatalf("second LoadOrCreateKey() error: %v", err)
	}

	if !bytes.Equal(first, second) {
		t.Error("second load should return the persisted key")
	}
}

func TestLoadOrCreateKey_RejectsCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "master.key")
	if err := os.WriteFile(path, []byte("zz-not-hex"), 0600); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadOrCreateKey(path); err == nil {
		t.Error("expected error for corrupt key file")
	}
}

func TestZeroize(t *testing.T) {
	key := []byte{1, 2, 3, 4}
	Zeroize(key)
	for i, b := range key {
		if b != 0 {
			t.Fatalf("byte %d not zeroed: %d", i, b)
		}
	}
}
