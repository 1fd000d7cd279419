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
	"fmt"

	"github.com/spf13/cobra"
)

// Version is the CLI version, overridable at link time.
var Version = "0.1.0"

// --- Global Command Variables ---
var (
	configPath string
	noServer   bool
	jsonOutput bool
	servePort  int

	rootCmd = &cobra.Command{
		Use:   "rescan",
		Short: "Orchestrates ReScript dead-code analysis and diagnostics",
		Long: `rescan runs the ReScript editor-analysis tool against a project
tree, manages one long-lived analysis server per monorepo root, and
reconciles the results into a live diagnostics set with quick fixes.`,
	}

	// --- Analysis ---
	analyzeCmd = &cobra.Command{
		Use:   "analyze [file...]",
		Short: "Analyze one or more source files and print diagnostics",
		Args:  cobra.MinimumNArgs(1),
		Run:   runAnalyze, // Defined in cmd_analyze.go
	}

	watchCmd = &cobra.Command{
		Use:   "watch [directory]",
		Short: "Watch a project tree and analyze on every save",
		Args:  cobra.MaximumNArgs(1),
		Run:   runWatch, // Defined in cmd_watch.go
	}

	// --- Server Management ---
	serverCmd = &cobra.Command{
		Use:   "server",
		Short: "Manage long-lived analysis servers",
	}
	serverStartCmd = &cobra.Command{
		Use:   "start [file or directory]",
		Short: "Start an analysis server for a project's monorepo root",
		Args:  cobra.MaximumNArgs(1),
		Run:   runServerStart, // Defined in cmd_server.go
	}
	serverStopCmd = &cobra.Command{
		Use:   "stop [file or directory]",
		Short: "Release the analysis server for a project (never kills external servers)",
		Args:  cobra.MaximumNArgs(1),
		Run:   runServerStop, // Defined in cmd_server.go
	}
	serverStatusCmd = &cobra.Command{
		Use:   "status [file or directory]",
		Short: "Report whether an analysis server is live for a project",
		Args:  cobra.MaximumNArgs(1),
		Run:   runServerStatus, // Defined in cmd_server.go
	}
	serverLogCmd = &cobra.Command{
		Use:   "log [file or directory]",
		Short: "Show the tail of the analysis server log",
		Long: `Shows recent output of an analysis server started by this process.

Server logs live in the memory of the process that spawned the server,
so logs of servers started by 'rescan serve' are served by its
GET /v1/analysis/servers/log endpoint, not by this command.`,
		Args: cobra.MaximumNArgs(1),
		Run:  runServerLog, // Defined in cmd_server.go
	}

	// --- HTTP Surface ---
	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Expose the analysis engine over HTTP",
		Run:   runServe, // Defined in cmd_serve.go
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the rescan version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("rescan " + Version)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "",
		"Path to the config file (default ~/.rescan/rescan.yaml)")

	rootCmd.AddCommand(analyzeCmd)
	analyzeCmd.Flags().BoolVar(&noServer, "no-server", false,
		"Skip starting a long-lived analysis server before the run")
	analyzeCmd.Flags().BoolVar(&jsonOutput, "json", false,
		"Print diagnostics as JSON instead of text")

	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().BoolVar(&noServer, "no-server", false,
		"Skip starting a long-lived analysis server before each run")

	rootCmd.AddCommand(serverCmd)
	serverCmd.AddCommand(serverStartCmd)
	serverCmd.AddCommand(serverStopCmd)
	serverCmd.AddCommand(serverStatusCmd)
	serverCmd.AddCommand(serverLogCmd)

	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().IntVar(&servePort, "port", 0,
		"HTTP listener port (overrides serve.port from the config)")

	rootCmd.AddCommand(versionCmd)
}
