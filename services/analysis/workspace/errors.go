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

import "errors"

// Sentinel errors for workspace resolution.
var (
	// ErrNoProjectRoot indicates no ancestor directory carried a project
	// marker file (rescript.json or bsconfig.json).
	ErrNoProjectRoot = errors.New("no project root found")

	// ErrBinaryNotFound indicates no usable toolchain binary was located.
	ErrBinaryNotFound = errors.New("analysis binary not found")

	// ErrUnsupportedPlatform indicates no binary layout is known for the
	// current OS/architecture combination.
	ErrUnsupportedPlatform = errors.New("unsupported platform")

	// ErrNotUnderNodeModules indicates a binary path that does not live
	// inside a node_modules install, so no monorepo root can be derived.
	ErrNotUnderNodeModules = errors.New("binary path not under node_modules")
)
