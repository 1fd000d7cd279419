// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package runner executes one-shot analysis invocations and parses their
// structured output.
//
// A run is a single subprocess (`rescript-editor-analysis reanalyze -json`
// with the monorepo root as working directory), distinct from the
// long-lived server the registry package manages. Stdout is accumulated
// until the process closes and parsed as a JSON report; stderr is scanned
// line by line for the stale-artifacts distress signature so that a
// corrupted build state produces an actionable "clean and rebuild" hint
// instead of a generic failure.
//
// Failures are deliberately loud: a malformed-output error carries the
// exact command line, working directory, and a head of the raw output so
// the invocation can be reproduced in a bug report. Callers must clear
// any published diagnostics when a run fails this way; stale diagnostics
// are worse than none.
package runner
