// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package workspace

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

// writeFile creates a file (and parent directories) with trivial content.
func writeFile(t *testing.T, path string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir %s: %v", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, []byte("{}\n"), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestFindProjectRoot_MarkerInContainingDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "rescript.json"))
	writeFile(t, filepath.Join(dir, "src", "App.res"))

	got, err := FindProjectRoot(filepath.Join(dir, "src", "App.res"))
	if err != nil {
		t.Fatalf("FindProjectRoot() error = %v", err)
	}
	if got != dir {
		t.Errorf("FindProjectRoot() = %q, want %q", got, dir)
	}
}

func TestFindProjectRoot_LegacyMarker(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "bsconfig.json"))
	writeFile(t, filepath.Join(dir, "src", "deep", "Util.res"))

	got, err := FindProjectRoot(filepath.Join(dir, "src", "deep", "Util.res"))
	if err != nil {
		t.Fatalf("FindProjectRoot() error = %v", err)
	}
	if got != dir {
		t.Errorf("FindProjectRoot() = %q, want %q", got, dir)
	}
}

func TestFindProjectRoot_NearestWinsInNestedMonorepo(t *testing.T) {
	top := t.TempDir()
	sub := filepath.Join(top, "packages", "app")
	writeFile(t, filepath.Join(top, "rescript.json"))
	writeFile(t, filepath.Join(sub, "rescript.json"))
	writeFile(t, filepath.Join(sub, "src", "Main.res"))

	got, err := FindProjectRoot(filepath.Join(sub, "src", "Main.res"))
	if err != nil {
		t.Fatalf("FindProjectRoot() error = %v", err)
	}
	if got != sub {
		t.Errorf("FindProjectRoot() = %q, want nearest root %q", got, sub)
	}
}

func TestFindProjectRoot_DirectoryInput(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "rescript.json"))

	got, err := FindProjectRoot(dir)
	if err != nil {
		t.Fatalf("FindProjectRoot() error = %v", err)
	}
	if got != dir {
		t.Errorf("FindProjectRoot() = %q, want %q", got, dir)
	}
}

func TestFindProjectRoot_NotFound(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "src", "Orphan.res"))

	_, err := FindProjectRoot(filepath.Join(dir, "src", "Orphan.res"))
	if !errors.Is(err, ErrNoProjectRoot) {
		t.Errorf("FindProjectRoot() error = %v, want ErrNoProjectRoot", err)
	}
}

func TestFindProjectRoot_MarkerMustBeFile(t *testing.T) {
	dir := t.TempDir()
	// A directory named like a marker must not count.
	if err := os.MkdirAll(filepath.Join(dir, "sub", "rescript.json"), 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(dir, "sub", "A.res"))

	_, err := FindProjectRoot(filepath.Join(dir, "sub", "A.res"))
	if !errors.Is(err, ErrNoProjectRoot) {
		t.Errorf("FindProjectRoot() error = %v, want ErrNoProjectRoot", err)
	}
}
