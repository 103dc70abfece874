// Copyright 2026 The Dusa Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestInfo(t *testing.T) {
	originalCommit, originalDirty := GitCommit, GitDirty
	defer func() { GitCommit, GitDirty = originalCommit, originalDirty }()

	GitCommit = "abc1234"
	GitDirty = "true"
	if got := Info(); !strings.Contains(got, "abc1234-dirty") {
		t.Errorf("Info() = %q, want dirty marker", got)
	}

	GitDirty = "false"
	if got := Info(); strings.Contains(got, "dirty") {
		t.Errorf("Info() = %q, want no dirty marker", got)
	}
}

func TestFull(t *testing.T) {
	full := Full("1.2.0")
	for _, want := range []string{Info(), "Protocol: 1.2.0", "Go: go", "Platform: "} {
		if !strings.Contains(full, want) {
			t.Errorf("Full() = %q, missing %q", full, want)
		}
	}
}

func TestFileHash(t *testing.T) {
	directory := t.TempDir()
	first := filepath.Join(directory, "first")
	second := filepath.Join(directory, "second")
	if err := os.WriteFile(first, []byte("binary a"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(second, []byte("binary b"), 0o644); err != nil {
		t.Fatal(err)
	}

	hashA, err := FileHash(first)
	if err != nil {
		t.Fatalf("FileHash: %v", err)
	}
	if len(hashA) != 64 {
		t.Errorf("hash length = %d, want 64", len(hashA))
	}
	again, _ := FileHash(first)
	if again != hashA {
		t.Error("FileHash is not deterministic")
	}
	hashB, _ := FileHash(second)
	if hashB == hashA {
		t.Error("different contents hashed equal")
	}

	if _, err := FileHash(filepath.Join(directory, "missing")); err == nil {
		t.Error("FileHash of a missing file succeeded")
	}
}

func TestSelfHash(t *testing.T) {
	hash, err := SelfHash()
	if err != nil {
		t.Fatalf("SelfHash: %v", err)
	}
	if len(hash) != 64 {
		t.Errorf("SelfHash() = %q", hash)
	}
}
