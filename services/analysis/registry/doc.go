// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package registry manages long-lived analysis-server processes, one per
// monorepo root.
//
// # Ownership Model
//
// The registry distinguishes servers it spawned (owned) from servers it
// merely detected (adopted). The control socket file at
// <root>/.rescript-analysis.sock is the liveness signal: if it exists
// before we ever started anything, some other process owns the server and
// we must never kill it. Stop only terminates owned processes; adopted
// handles are dropped from the table with the external process untouched.
//
// # Invariants
//
//   - At most one handle per monorepo root.
//   - A process is killed only when Owned is true.
//   - An owned process that exits removes its own handle, so the table
//     never advertises a dead server.
//
// # Concurrency
//
// Startup for a root is serialized by a per-root lock, so two concurrent
// EnsureStarted calls for the same root spawn at most one process. Handle
// removal on process exit flows through a single consumer goroutine fed
// by an exit channel; generation numbers guard against a stale exit event
// removing a newer handle for the same root.
//
// # Usage
//
//	reg := registry.NewRegistry()
//	defer reg.Close()
//
//	handle, err := reg.EnsureStarted(ctx, monorepoRoot, binaryPath)
//	if err != nil {
//	    // spawn failure; socket timeouts are warnings, not errors
//	}
package registry
