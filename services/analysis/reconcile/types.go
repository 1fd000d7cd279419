// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package reconcile

// =============================================================================
// DIAGNOSTIC TYPES
// =============================================================================

// WholeFileEndLine is the upper-bound sentinel used when a diagnostic
// applies to the entire document. It exceeds any realistic line count so
// the range always covers the full file regardless of its length.
const WholeFileEndLine = 1 << 20

// SeverityWarning is the only severity this engine publishes.
const SeverityWarning = "warning"

// Range is a half-open span in zero-based document coordinates.
type Range struct {
	StartLine int `json:"startLine"`
	StartChar int `json:"startChar"`
	EndLine   int `json:"endLine"`
	EndChar   int `json:"endChar"`
}

// WholeFile reports whether the range is the normalized whole-document
// span.
func (r Range) WholeFile() bool {
	return r.StartLine == 0 && r.StartChar == 0 && r.EndLine == WholeFileEndLine && r.EndChar == 0
}

// EditKind distinguishes the two quick-fix edit shapes.
type EditKind int

const (
	// EditReplace substitutes text at a single point.
	EditReplace EditKind = iota

	// EditDelete removes the diagnostic's exact range.
	EditDelete
)

// String returns the kind name for logs and API responses.
func (k EditKind) String() string {
	switch k {
	case EditReplace:
		return "replace"
	case EditDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// MarshalText makes EditKind render as its name in JSON payloads.
func (k EditKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// FixEdit is a concrete textual edit.
//
// For EditReplace, Text is inserted at (Line, Character). For EditDelete,
// Line and Character anchor the start of the removed span and Text is
// empty.
type FixEdit struct {
	Line      int      `json:"line"`
	Character int      `json:"character"`
	Text      string   `json:"text,omitempty"`
	Kind      EditKind `json:"kind"`
}

// Diagnostic is one published finding.
type Diagnostic struct {
	File     string   `json:"file"`
	Range    Range    `json:"range"`
	Message  string   `json:"message"`
	Category string   `json:"category"`
	Severity string   `json:"severity"`
	Fix      *FixEdit `json:"fix,omitempty"`
}

// FixAction is a user-triggerable edit attached to a diagnostic.
type FixAction struct {
	Title string  `json:"title"`
	File  string  `json:"file"`
	Range Range   `json:"range"`
	Edit  FixEdit `json:"edit"`

	// ClearsDiagnostic marks delete fixes whose application should also
	// drop the diagnostic from the published set.
	ClearsDiagnostic bool `json:"clearsDiagnostic"`
}

// State is the published diagnostics view, keyed by file path. A file
// mapped to an empty (non-nil) list was explicitly cleared.
type State map[string][]Diagnostic

// Clone returns a deep-enough copy for handing out snapshots. The
// diagnostic slices are copied; Fix pointers are shared since fixes are
// never mutated after reconciliation.
func (s State) Clone() State {
	out := make(State, len(s))
	for file, diags := range s {
		cp := make([]Diagnostic, len(diags))
		copy(cp, diags)
		out[file] = cp
	}
	return out
}

// Total returns the number of diagnostics across all files.
func (s State) Total() int {
	n := 0
	for _, diags := range s {
		n += len(diags)
	}
	return n
}

// =============================================================================
// ACTION INDEX
// =============================================================================

// actionKey identifies the set of actions applicable at a location.
type actionKey struct {
	file string
	rng  Range
}

// ActionIndex maps (file, range) to the quick-fix actions derived for
// that exact diagnostic span. Read-only after reconciliation.
type ActionIndex struct {
	actions map[actionKey][]FixAction
}

// NewActionIndex creates an empty index.
func NewActionIndex() *ActionIndex {
	return &ActionIndex{actions: make(map[actionKey][]FixAction)}
}

// add appends an action under its (file, range) key.
func (ix *ActionIndex) add(a FixAction) {
	key := actionKey{file: a.File, rng: a.Range}
	ix.actions[key] = append(ix.actions[key], a)
}

// ActionsFor returns the actions registered for an exact file and range.
func (ix *ActionIndex) ActionsFor(file string, rng Range) []FixAction {
	return ix.actions[actionKey{file: file, rng: rng}]
}

// Len returns the total number of indexed actions.
func (ix *ActionIndex) Len() int {
	n := 0
	for _, acts := range ix.actions {
		n += len(acts)
	}
	return n
}
