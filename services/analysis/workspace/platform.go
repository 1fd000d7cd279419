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
)

const (
	// platformScope is the npm scope of the per-platform binary packages.
	platformScope = "@rescript"

	// binManifestName is the manifest inside a platform package mapping
	// binary names to package-relative paths. A data file, deliberately:
	// no code is loaded from the platform package.
	binManifestName = "bin.json"
)

// legacyPlatformDir returns the platform subdirectory used by pre-v12
// bundles, which carry binaries for every platform inside the main package.
func legacyPlatformDir(goos, goarch string) (string, error) {
	switch goos {
	case "linux":
		if goarch == "arm64" {
			return "linuxarm64", nil
		}
		return "linux", nil
	case "darwin":
		if goarch == "arm64" {
			return "darwinarm64", nil
		}
		return "darwin", nil
	case "windows":
		return "win32", nil
	default:
		return "", fmt.Errorf("%w: %s/%s", ErrUnsupportedPlatform, goos, goarch)
	}
}

// platformPackageName returns the @rescript companion package name for an
// OS/architecture pair, e.g. "linux-x64" or "darwin-arm64".
func platformPackageName(goos, goarch string) (string, error) {
	var osPart string
	switch goos {
	case "linux":
		osPart = "linux"
	case "darwin":
		osPart = "darwin"
	case "windows":
		osPart = "win32"
	default:
		return "", fmt.Errorf("%w: %s/%s", ErrUnsupportedPlatform, goos, goarch)
	}

	var archPart string
	switch goarch {
	case "amd64":
		archPart = "x64"
	case "arm64":
		archPart = "arm64"
	default:
		return "", fmt.Errorf("%w: %s/%s", ErrUnsupportedPlatform, goos, goarch)
	}

	return osPart + "-" + archPart, nil
}

// binaryFromPlatformPackage resolves a v12+ binary through the sibling
// platform package's bin.json manifest.
func binaryFromPlatformPackage(nodeModules string, kind BinaryKind) (string, error) {
	pkgName, err := platformPackageName(runtime.GOOS, runtime.GOARCH)
	if err != nil {
		return "", err
	}
	return binaryFromManifest(filepath.Join(nodeModules, platformScope, pkgName), kind)
}

// binaryFromManifest reads a platform package's bin.json and resolves the
// entry for the requested binary kind.
func binaryFromManifest(pkgDir string, kind BinaryKind) (string, error) {
	manifestPath := filepath.Join(pkgDir, binManifestName)
	raw, err := os.ReadFile(manifestPath)
	if err != nil {
		return "", fmt.Errorf("%w: no platform package manifest at %s", ErrBinaryNotFound, manifestPath)
	}

	var entries map[string]string
	if err := json.Unmarshal(raw, &entries); err != nil {
		return "", fmt.Errorf("%w: parsing %s: %v", ErrBinaryNotFound, manifestPath, err)
	}

	rel, ok := entries[kind.String()]
	if !ok {
		return "", fmt.Errorf("%w: %s has no entry for %s", ErrBinaryNotFound, manifestPath, kind)
	}
	return filepath.Join(pkgDir, filepath.FromSlash(rel)), nil
}
