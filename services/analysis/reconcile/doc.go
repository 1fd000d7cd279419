// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package reconcile merges fresh analysis results into the published
// diagnostics state and derives quick-fix actions.
//
// Reconciliation is a pure function of the new result batch and the
// previously published state. Files carried in the batch are replaced
// wholesale; files present before but absent now are explicitly cleared
// so fixed files never show stale diagnostics. The quick-fix action
// index is rebuilt from scratch each run, never patched.
//
// A single diagnostic can carry up to two actions: a replacement fix
// taken from the tool's annotation, and a synthesized delete fix when
// the message matches a known removable phrasing.
package reconcile
