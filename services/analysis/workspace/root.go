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
	"fmt"
	"os"
	"path/filepath"
)

// Project marker files. A directory containing either is a project root.
var projectMarkers = []string{"rescript.json", "bsconfig.json"}

// FindProjectRoot locates the nearest project root for a source file.
//
// Description:
//
//	Normalizes the path, then walks ancestor directories starting from
//	the file's containing directory, returning the first directory that
//	contains a recognized project marker file. If path is itself a
//	directory, the walk starts there.
//
// Inputs:
//
//	path - Absolute or relative path to a source file or directory
//
// Outputs:
//
//	string - Absolute path of the project root
//	error - ErrNoProjectRoot if the filesystem root is reached
//
// Thread Safety: Safe for concurrent use.
func FindProjectRoot(path string) (string, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("normalizing path: %w", err)
	}

	dir := filepath.Dir(abs)
	if info, err := os.Stat(abs); err == nil && info.IsDir() {
		dir = abs
	}

	for {
		for _, marker := range projectMarkers {
			if fileExists(filepath.Join(dir, marker)) {
				return dir, nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%w: searched upward from %s", ErrNoProjectRoot, abs)
		}
		dir = parent
	}
}

// fileExists reports whether path exists and is a regular file.
func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// dirExists reports whether path exists and is a directory.
func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
