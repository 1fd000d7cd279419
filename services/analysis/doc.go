// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package analysis orchestrates the full pipeline from a changed file to
// published diagnostics.
//
// The Service ties the engine packages together: workspace resolves the
// project root and analysis binary, registry keeps one long-lived server
// per monorepo root, runner executes one-shot analysis passes, and
// reconcile folds the results into the published state. Construct one
// Service per process, pass it by reference, and Close it at shutdown.
//
// Overlapping runs against the same monorepo root are sequenced with a
// monotonic counter; a run that finishes after a newer one has already
// published is discarded rather than clobbering fresher results.
package analysis
