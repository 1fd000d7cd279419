// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package workspace locates ReScript project roots and toolchain binaries.
//
// The package answers two questions for a given source file:
//
//  1. Which directory is the project root? (nearest ancestor carrying a
//     rescript.json or bsconfig.json)
//  2. Where is the analysis binary for that project, and which monorepo
//     root owns the install it came from?
//
// # Resolution Strategy
//
// Binary lookup tries the cheapest source first:
//
//	compiler-info.json (direct path) → node_modules walk → platform package
//
// Monorepos complicate the walk: a sub-package's project root often has
// no node_modules of its own, so the walk continues upward until it finds
// the shared install. The directory that owns that install is the
// "monorepo root" and is the key the server registry uses.
//
// # Version Handling
//
// ReScript releases before v12 bundle binaries for every platform inside
// the rescript package itself. From v12 on, binaries ship in sibling
// platform packages (@rescript/linux-x64 and friends) described by a
// small bin.json manifest. Both layouts are supported; the split is a
// plain semver comparison via golang.org/x/mod/semver.
//
// # Thread Safety
//
// All functions are pure with respect to package state and safe for
// concurrent use. Results reflect the filesystem at call time; callers
// re-resolve per trigger rather than caching.
package workspace
