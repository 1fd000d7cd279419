// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package runner

import (
	"encoding/json"
	"fmt"
)

// =============================================================================
// WIRE TYPES
// =============================================================================

// Annotation is a tool-suggested single-point replacement attached to a
// report item. Text is inserted or substituted at (Line, Character).
type Annotation struct {
	Line      int    `json:"line"`
	Character int    `json:"character"`
	Text      string `json:"text"`
	Action    string `json:"action"`
}

// ReportItem is one diagnostic result from a one-shot analysis run.
//
// Range is [startLine, startCol, endLine, endCol] in zero-based document
// coordinates. A negative start line is the tool's whole-file sentinel;
// it is passed through unchanged here and normalized downstream.
type ReportItem struct {
	Name     string      `json:"name"`
	Kind     string      `json:"kind"`
	File     string      `json:"file"`
	Range    [4]int      `json:"range"`
	Message  string      `json:"message"`
	Annotate *Annotation `json:"annotate,omitempty"`
}

// Report is the parsed output of a single analysis run.
type Report struct {
	// RunID identifies the run that produced the report in logs.
	RunID string

	// Items are the diagnostic results in tool order.
	Items []ReportItem

	// StaleArtifacts is true when the distress signature was seen on
	// stderr. The report may still be usable; callers should surface the
	// clean-rebuild hint either way.
	StaleArtifacts bool
}

// parseReport decodes the accumulated stdout of a run. The document is a
// single JSON array; anything else is malformed.
func parseReport(output []byte) ([]ReportItem, error) {
	var items []ReportItem
	if err := json.Unmarshal(output, &items); err != nil {
		return nil, fmt.Errorf("decode report: %w", err)
	}
	return items, nil
}
