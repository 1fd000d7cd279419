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

import (
	"strings"

	"github.com/avialle/rescan/services/analysis/runner"
)

// suppressedCategory filters findings too noisy to surface.
const suppressedCategory = "unused argument"

// removableSuffixes classify messages whose reported range is safe to
// delete outright.
var removableSuffixes = []string{
	"is never used",
	"is never used and could have side effects",
	"has no side effects and can be removed",
}

// Reconcile merges a fresh result batch into the published view.
//
// Description:
//
//	Suppresses unused-argument findings, normalizes whole-file sentinel
//	ranges, groups the remainder into per-file ordered lists, and derives
//	quick-fix actions. Files present in prev but absent from the batch
//	are mapped to explicit empty lists so callers publish the clear. The
//	returned index is rebuilt wholesale; prev is never mutated.
//
// Inputs:
//
//	items - Result batch in tool order
//	prev - Previously published state, may be nil
//
// Outputs:
//
//	State - The new published view
//	*ActionIndex - Actions keyed by (file, range)
func Reconcile(items []runner.ReportItem, prev State) (State, *ActionIndex) {
	next := make(State)
	index := NewActionIndex()

	for _, item := range items {
		if suppressed(item) {
			continue
		}

		rng := normalizeRange(item.Range)
		diag := Diagnostic{
			File:     item.File,
			Range:    rng,
			Message:  item.Message,
			Category: item.Name,
			Severity: SeverityWarning,
		}

		if item.Annotate != nil {
			edit := FixEdit{
				Line:      item.Annotate.Line,
				Character: item.Annotate.Character,
				Text:      item.Annotate.Text,
				Kind:      EditReplace,
			}
			diag.Fix = &edit
			index.add(FixAction{
				Title: replacementTitle(item.Annotate),
				File:  item.File,
				Range: rng,
				Edit:  edit,
			})
		}

		if removable(item.Message) {
			index.add(FixAction{
				Title: "Remove unused code",
				File:  item.File,
				Range: rng,
				Edit: FixEdit{
					Line:      rng.StartLine,
					Character: rng.StartChar,
					Kind:      EditDelete,
				},
				ClearsDiagnostic: true,
			})
		}

		next[item.File] = append(next[item.File], diag)
	}

	// Fixed files publish an explicit clear, never a silent absence.
	for file := range prev {
		if _, ok := next[file]; !ok {
			next[file] = []Diagnostic{}
		}
	}

	return next, index
}

// suppressed reports whether a finding's category is filtered out.
func suppressed(item runner.ReportItem) bool {
	return strings.Contains(strings.ToLower(item.Name), suppressedCategory)
}

// normalizeRange converts the tool's four-integer range, mapping the
// negative-line whole-file sentinel to a span covering any document.
func normalizeRange(r [4]int) Range {
	if r[0] < 0 || r[2] < 0 {
		return Range{StartLine: 0, StartChar: 0, EndLine: WholeFileEndLine, EndChar: 0}
	}
	return Range{StartLine: r[0], StartChar: r[1], EndLine: r[2], EndChar: r[3]}
}

// removable reports whether the message matches a deletable phrasing.
func removable(message string) bool {
	for _, suffix := range removableSuffixes {
		if strings.HasSuffix(message, suffix) {
			return true
		}
	}
	return false
}

// replacementTitle derives the action title from the annotation, falling
// back to a generic label when the tool gave none.
func replacementTitle(a *runner.Annotation) string {
	if a.Action != "" {
		return a.Action
	}
	return "Apply suggested replacement"
}
