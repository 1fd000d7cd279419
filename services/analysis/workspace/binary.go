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
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"golang.org/x/mod/semver"
)

const (
	// nodeModulesDir is the dependency installation directory name.
	nodeModulesDir = "node_modules"

	// toolchainPackage is the npm package carrying the ReScript toolchain.
	toolchainPackage = "rescript"

	// packageManifestName is the npm package manifest file.
	packageManifestName = "package.json"

	// compilerInfoRelPath is the optional build-output metadata file that
	// names the compiler binary directly, bypassing the dependency walk.
	compilerInfoRelPath = "lib/bs/compiler-info.json"

	// platformPackagesSince is the major version from which binaries ship
	// in per-platform companion packages instead of the main bundle.
	platformPackagesSince = "v12"

	// minSupportedVersion is surfaced in not-found messages so users know
	// what to install.
	minSupportedVersion = "9.1.0"
)

// =============================================================================
// BINARY KIND
// =============================================================================

// BinaryKind identifies one of the toolchain binaries.
type BinaryKind int

const (
	// BinaryAnalysis is the editor-analysis binary (one-shot analysis and
	// the long-lived analysis server).
	BinaryAnalysis BinaryKind = iota

	// BinaryCompiler is the bsc compiler binary.
	BinaryCompiler

	// BinaryBuild is the rescript build orchestrator binary.
	BinaryBuild
)

// String returns the binary's base name without platform suffix.
func (k BinaryKind) String() string {
	switch k {
	case BinaryAnalysis:
		return "rescript-editor-analysis"
	case BinaryCompiler:
		return "bsc"
	case BinaryBuild:
		return "rescript"
	default:
		return "unknown"
	}
}

// fileName returns the on-disk file name for the current platform.
func (k BinaryKind) fileName() string {
	return k.String() + exeSuffix()
}

func exeSuffix() string {
	if runtime.GOOS == "windows" {
		return ".exe"
	}
	return ""
}

// =============================================================================
// BINARY LOCATION
// =============================================================================

// FindBinary locates a toolchain binary for a resolved project root.
//
// Description:
//
//	Resolution order:
//	 1. lib/bs/compiler-info.json under the root, when present and
//	    parseable, names the compiler binary directly; the requested
//	    binary is derived as its sibling.
//	 2. Otherwise walk ancestor directories for a node_modules/rescript
//	    install (the monorepo root candidate).
//	 3. Branch on the installed package version: pre-v12 bundles carry
//	    binaries in a platform subdirectory of the package; v12+ installs
//	    resolve through a sibling @rescript/<os>-<arch> platform package
//	    and its bin.json manifest.
//	 4. The candidate is returned only if it exists on disk.
//
// Inputs:
//
//	root - Absolute project root path
//	kind - Which toolchain binary to locate
//
// Outputs:
//
//	string - Absolute path to the binary
//	error - ErrBinaryNotFound (with an install hint) or ErrUnsupportedPlatform
//
// Thread Safety: Safe for concurrent use.
func FindBinary(root string, kind BinaryKind) (string, error) {
	if p, ok := binaryFromCompilerInfo(root, kind); ok {
		return p, nil
	}

	pkgDir, err := findToolchainDir(root)
	if err != nil {
		return "", err
	}

	version, err := readPackageVersion(filepath.Join(pkgDir, packageManifestName))
	if err != nil {
		return "", fmt.Errorf("%w: reading toolchain manifest: %v", ErrBinaryNotFound, err)
	}

	var candidate string
	if usesPlatformPackages(version) {
		candidate, err = binaryFromPlatformPackage(filepath.Dir(pkgDir), kind)
	} else {
		candidate, err = binaryFromBundle(pkgDir, kind)
	}
	if err != nil {
		return "", err
	}

	if !fileExists(candidate) {
		return "", fmt.Errorf("%w: %s not present at %s (ReScript >= %s required)",
			ErrBinaryNotFound, kind, candidate, minSupportedVersion)
	}
	return candidate, nil
}

// DeriveMonorepoRoot derives the monorepo root from a resolved binary path.
//
// Description:
//
//	The monorepo root is the directory that owns the node_modules install
//	the binary came from, i.e. everything before the last node_modules
//	segment. Accepts both slash styles so paths recorded on one OS can be
//	resolved on another.
//
// Inputs:
//
//	binaryPath - Path to a binary inside a node_modules install
//
// Outputs:
//
//	string - The monorepo root path
//	error - ErrNotUnderNodeModules if no node_modules segment exists
func DeriveMonorepoRoot(binaryPath string) (string, error) {
	norm := strings.ReplaceAll(binaryPath, "\\", "/")
	marker := "/" + nodeModulesDir + "/"
	idx := strings.LastIndex(norm, marker)
	if idx < 0 {
		return "", fmt.Errorf("%w: %s", ErrNotUnderNodeModules, binaryPath)
	}
	return filepath.Clean(filepath.FromSlash(norm[:idx])), nil
}

// =============================================================================
// RESOLUTION STEPS
// =============================================================================

// compilerInfo is the build-output metadata file written by the build
// orchestrator. Only the compiler path field is consumed here.
type compilerInfo struct {
	CompilerPath string `json:"compiler_path"`
}

// binaryFromCompilerInfo short-circuits resolution via build metadata.
// Returns ok=false when the file is absent, unparseable, or the derived
// sibling does not exist, in which case the caller falls back to the walk.
func binaryFromCompilerInfo(root string, kind BinaryKind) (string, bool) {
	raw, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(compilerInfoRelPath)))
	if err != nil {
		return "", false
	}

	var info compilerInfo
	if err := json.Unmarshal(raw, &info); err != nil || info.CompilerPath == "" {
		return "", false
	}

	compilerPath := info.CompilerPath
	if !filepath.IsAbs(compilerPath) {
		compilerPath = filepath.Join(root, compilerPath)
	}

	candidate := filepath.Join(filepath.Dir(compilerPath), kind.fileName())
	if !fileExists(candidate) {
		return "", false
	}
	return candidate, true
}

// findToolchainDir walks upward from root looking for node_modules/rescript.
func findToolchainDir(root string) (string, error) {
	dir := root
	for {
		candidate := filepath.Join(dir, nodeModulesDir, toolchainPackage)
		if dirExists(candidate) {
			return candidate, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%w: no %s/%s above %s (ReScript >= %s required)",
				ErrBinaryNotFound, nodeModulesDir, toolchainPackage, root, minSupportedVersion)
		}
		dir = parent
	}
}

// packageManifest is the subset of package.json consumed here.
type packageManifest struct {
	Version string `json:"version"`
}

// readPackageVersion reads the declared version from a package manifest.
func readPackageVersion(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	var manifest packageManifest
	if err := json.Unmarshal(raw, &manifest); err != nil {
		return "", fmt.Errorf("parsing %s: %w", path, err)
	}
	if manifest.Version == "" {
		return "", fmt.Errorf("no version field in %s", path)
	}
	return manifest.Version, nil
}

// usesPlatformPackages reports whether the installed version ships binaries
// in per-platform companion packages. Compares majors so prereleases of the
// threshold version take the new layout.
func usesPlatformPackages(version string) bool {
	v := version
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	if !semver.IsValid(v) {
		return false
	}
	return semver.Compare(semver.Major(v), platformPackagesSince) >= 0
}

// binaryFromBundle resolves a pre-v12 binary inside the main package.
func binaryFromBundle(pkgDir string, kind BinaryKind) (string, error) {
	platformDir, err := legacyPlatformDir(runtime.GOOS, runtime.GOARCH)
	if err != nil {
		return "", err
	}
	return filepath.Join(pkgDir, platformDir, kind.fileName()), nil
}
