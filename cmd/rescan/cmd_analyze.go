// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/avialle/rescan/services/analysis"
	"github.com/avialle/rescan/services/analysis/reconcile"
)

// runAnalyze analyzes the given files once and prints the resulting
// diagnostics to stdout.
func runAnalyze(cmd *cobra.Command, args []string) {
	svcCfg := cfg.Analysis.ServiceConfig()
	if noServer {
		svcCfg.ManageServers = false
	}

	svc := analysis.NewService(svcCfg)
	defer svc.Close()

	if err := svc.AnalyzeFiles(context.Background(), args); err != nil {
		log.Fatalf("Analysis failed: %v", err)
	}

	state := svc.Diagnostics()
	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(state); err != nil {
			log.Fatalf("Error encoding diagnostics: %v", err)
		}
		return
	}

	printDiagnostics(state)
}

// printDiagnostics renders a state as grep-friendly file:line:col lines,
// sorted by file then position.
func printDiagnostics(state reconcile.State) {
	files := make([]string, 0, len(state))
	for file := range state {
		files = append(files, file)
	}
	sort.Strings(files)

	total := 0
	for _, file := range files {
		diags := state[file]
		sort.SliceStable(diags, func(i, j int) bool {
			if diags[i].Range.StartLine != diags[j].Range.StartLine {
				return diags[i].Range.StartLine < diags[j].Range.StartLine
			}
			return diags[i].Range.StartChar < diags[j].Range.StartChar
		})
		for _, d := range diags {
			fmt.Printf("%s:%d:%d: %s: %s\n",
				file, d.Range.StartLine+1, d.Range.StartChar+1, d.Category, d.Message)
			total++
		}
	}

	if total == 0 {
		fmt.Println("No issues found.")
		return
	}
	fmt.Printf("%d issue(s) found.\n", total)
}
