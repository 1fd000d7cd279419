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
	"runtime"
	"testing"
)

// writeFileContent creates a file with the given content.
func writeFileContent(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o755); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

// installBundle lays out a pre-v12 style install under root and returns the
// expected analysis binary path.
func installBundle(t *testing.T, root, version string) string {
	t.Helper()
	pkgDir := filepath.Join(root, "node_modules", "rescript")
	writeFileContent(t, filepath.Join(pkgDir, "package.json"), `{"name":"rescript","version":"`+version+`"}`)

	platformDir, err := legacyPlatformDir(runtime.GOOS, runtime.GOARCH)
	if err != nil {
		t.Skipf("no legacy layout for this platform: %v", err)
	}
	bin := filepath.Join(pkgDir, platformDir, BinaryAnalysis.fileName())
	writeFileContent(t, bin, "#!/bin/sh\n")
	return bin
}

// installPlatformPackage lays out a v12 style install under root and returns
// the expected analysis binary path.
func installPlatformPackage(t *testing.T, root, version string) string {
	t.Helper()
	writeFileContent(t,
		filepath.Join(root, "node_modules", "rescript", "package.json"),
		`{"name":"rescript","version":"`+version+`"}`)

	pkgName, err := platformPackageName(runtime.GOOS, runtime.GOARCH)
	if err != nil {
		t.Skipf("no platform package for this platform: %v", err)
	}
	pkgDir := filepath.Join(root, "node_modules", "@rescript", pkgName)
	rel := "bin/" + BinaryAnalysis.fileName()
	writeFileContent(t, filepath.Join(pkgDir, "bin.json"),
		`{"`+BinaryAnalysis.String()+`":"`+rel+`"}`)
	bin := filepath.Join(pkgDir, "bin", BinaryAnalysis.fileName())
	writeFileContent(t, bin, "#!/bin/sh\n")
	return bin
}

func TestFindBinary_PreThresholdBundle(t *testing.T) {
	root := t.TempDir()
	want := installBundle(t, root, "11.1.4")

	got, err := FindBinary(root, BinaryAnalysis)
	if err != nil {
		t.Fatalf("FindBinary() error = %v", err)
	}
	if got != want {
		t.Errorf("FindBinary() = %q, want %q", got, want)
	}
}

func TestFindBinary_PlatformPackage(t *testing.T) {
	root := t.TempDir()
	want := installPlatformPackage(t, root, "12.0.0")

	got, err := FindBinary(root, BinaryAnalysis)
	if err != nil {
		t.Fatalf("FindBinary() error = %v", err)
	}
	if got != want {
		t.Errorf("FindBinary() = %q, want %q", got, want)
	}
}

func TestFindBinary_ThresholdPrereleaseUsesPlatformPackage(t *testing.T) {
	root := t.TempDir()
	want := installPlatformPackage(t, root, "12.0.0-beta.2")

	got, err := FindBinary(root, BinaryAnalysis)
	if err != nil {
		t.Fatalf("FindBinary() error = %v", err)
	}
	if got != want {
		t.Errorf("FindBinary() = %q, want %q", got, want)
	}
}

func TestFindBinary_MonorepoWalksToSharedInstall(t *testing.T) {
	top := t.TempDir()
	want := installBundle(t, top, "11.0.1")

	sub := filepath.Join(top, "packages", "app")
	writeFileContent(t, filepath.Join(sub, "rescript.json"), "{}")

	got, err := FindBinary(sub, BinaryAnalysis)
	if err != nil {
		t.Fatalf("FindBinary() error = %v", err)
	}
	if got != want {
		t.Errorf("FindBinary() = %q, want shared install binary %q", got, want)
	}
}

func TestFindBinary_CompilerInfoShortCircuit(t *testing.T) {
	root := t.TempDir()
	binDir := filepath.Join(root, "custom-toolchain")
	writeFileContent(t, filepath.Join(binDir, BinaryCompiler.fileName()), "#!/bin/sh\n")
	want := filepath.Join(binDir, BinaryAnalysis.fileName())
	writeFileContent(t, want, "#!/bin/sh\n")

	writeFileContent(t, filepath.Join(root, "lib", "bs", "compiler-info.json"),
		`{"compiler_path":"`+filepath.ToSlash(filepath.Join(binDir, BinaryCompiler.fileName()))+`"}`)

	// No node_modules anywhere: only the metadata short-circuit can succeed.
	got, err := FindBinary(root, BinaryAnalysis)
	if err != nil {
		t.Fatalf("FindBinary() error = %v", err)
	}
	if got != want {
		t.Errorf("FindBinary() = %q, want %q", got, want)
	}
}

func TestFindBinary_NoInstall(t *testing.T) {
	root := t.TempDir()

	_, err := FindBinary(root, BinaryAnalysis)
	if !errors.Is(err, ErrBinaryNotFound) {
		t.Errorf("FindBinary() error = %v, want ErrBinaryNotFound", err)
	}
}

func TestFindBinary_MissingBinaryFile(t *testing.T) {
	root := t.TempDir()
	// Manifest present but no binary on disk.
	writeFileContent(t,
		filepath.Join(root, "node_modules", "rescript", "package.json"),
		`{"version":"11.1.0"}`)

	_, err := FindBinary(root, BinaryAnalysis)
	if !errors.Is(err, ErrBinaryNotFound) {
		t.Errorf("FindBinary() error = %v, want ErrBinaryNotFound", err)
	}
}

func TestUsesPlatformPackages(t *testing.T) {
	tests := []struct {
		version string
		want    bool
	}{
		{"11.1.4", false},
		{"9.1.0", false},
		{"12.0.0", true},
		{"12.0.0-alpha.13", true},
		{"13.2.1", true},
		{"v12.1.0", true},
		{"garbage", false},
	}

	for _, tt := range tests {
		if got := usesPlatformPackages(tt.version); got != tt.want {
			t.Errorf("usesPlatformPackages(%q) = %v, want %v", tt.version, got, tt.want)
		}
	}
}

func TestDeriveMonorepoRoot(t *testing.T) {
	tests := []struct {
		name    string
		path    string
		want    string
		wantErr bool
	}{
		{
			name: "unix style",
			path: "/work/repo/node_modules/rescript/linux/rescript-editor-analysis",
			want: "/work/repo",
		},
		{
			name: "windows style",
			path: `C:\work\repo\node_modules\rescript\win32\rescript-editor-analysis.exe`,
			want: filepath.Clean(filepath.FromSlash("C:/work/repo")),
		},
		{
			name: "nested installs use the innermost",
			path: "/mono/node_modules/pkg/node_modules/rescript/linux/bsc",
			want: filepath.Clean(filepath.FromSlash("/mono/node_modules/pkg")),
		},
		{
			name: "platform package",
			path: "/mono/node_modules/@rescript/linux-x64/bin/rescript-editor-analysis",
			want: "/mono",
		},
		{
			name:    "not under node_modules",
			path:    "/usr/local/bin/rescript-editor-analysis",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DeriveMonorepoRoot(tt.path)
			if tt.wantErr {
				if !errors.Is(err, ErrNotUnderNodeModules) {
					t.Errorf("DeriveMonorepoRoot() error = %v, want ErrNotUnderNodeModules", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("DeriveMonorepoRoot() error = %v", err)
			}
			if got != filepath.Clean(filepath.FromSlash(tt.want)) {
				t.Errorf("DeriveMonorepoRoot() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestPlatformPackageName(t *testing.T) {
	tests := []struct {
		goos, goarch string
		want         string
		wantErr      bool
	}{
		{"linux", "amd64", "linux-x64", false},
		{"linux", "arm64", "linux-arm64", false},
		{"darwin", "amd64", "darwin-x64", false},
		{"darwin", "arm64", "darwin-arm64", false},
		{"windows", "amd64", "win32-x64", false},
		{"plan9", "amd64", "", true},
		{"linux", "riscv64", "", true},
	}

	for _, tt := range tests {
		got, err := platformPackageName(tt.goos, tt.goarch)
		if tt.wantErr {
			if !errors.Is(err, ErrUnsupportedPlatform) {
				t.Errorf("platformPackageName(%s/%s) error = %v, want ErrUnsupportedPlatform", tt.goos, tt.goarch, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("platformPackageName(%s/%s) error = %v", tt.goos, tt.goarch, err)
		}
		if got != tt.want {
			t.Errorf("platformPackageName(%s/%s) = %q, want %q", tt.goos, tt.goarch, got, tt.want)
		}
	}
}
