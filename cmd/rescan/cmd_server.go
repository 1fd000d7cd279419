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
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/avialle/rescan/services/analysis"
	"github.com/avialle/rescan/services/analysis/registry"
	"github.com/avialle/rescan/services/analysis/workspace"
)

// resolveMonorepoRoot maps a file or directory argument to the monorepo
// root that an analysis server would be keyed by. Falls back to the
// project root when the toolchain layout does not reveal a monorepo.
func resolveMonorepoRoot(arg string) (monorepoRoot, binaryPath string, err error) {
	path := "."
	if arg != "" {
		path = arg
	}

	projectRoot, err := workspace.FindProjectRoot(path)
	if err != nil {
		return "", "", err
	}
	binaryPath, err = workspace.FindBinary(projectRoot, workspace.BinaryAnalysis)
	if err != nil {
		return "", "", err
	}
	monorepoRoot, err = workspace.DeriveMonorepoRoot(binaryPath)
	if err != nil {
		monorepoRoot = projectRoot
	}
	return monorepoRoot, binaryPath, nil
}

func argOrEmpty(args []string) string {
	if len(args) == 1 {
		return args[0]
	}
	return ""
}

// runServerStart starts an analysis server for the project's monorepo
// root and keeps it alive in the foreground until interrupted.
func runServerStart(cmd *cobra.Command, args []string) {
	monorepoRoot, binaryPath, err := resolveMonorepoRoot(argOrEmpty(args))
	if err != nil {
		log.Fatalf("Error locating the project: %v", err)
	}

	reg := registry.NewRegistry()
	defer reg.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	handle, err := reg.EnsureStarted(ctx, monorepoRoot, binaryPath)
	if err != nil {
		log.Fatalf("Error starting the analysis server: %v", err)
	}

	if handle.Owned {
		fmt.Printf("Analysis server running for %s (pid %d)\n", monorepoRoot, handle.Pid())
	} else {
		fmt.Printf("Adopted external analysis server for %s\n", monorepoRoot)
	}
	fmt.Println("Press Ctrl+C to stop.")

	<-ctx.Done()
	slog.Info("shutting down analysis servers")
	reg.StopAll()
}

// runServerStop releases the analysis server for a project. Servers
// started by other processes are never killed; only their handle and
// this command's knowledge of them are dropped.
func runServerStop(cmd *cobra.Command, args []string) {
	monorepoRoot, _, err := resolveMonorepoRoot(argOrEmpty(args))
	if err != nil {
		log.Fatalf("Error locating the project: %v", err)
	}

	socketPath := registry.SocketPath(monorepoRoot)
	if _, err := os.Stat(socketPath); os.IsNotExist(err) {
		fmt.Printf("No analysis server is running for %s\n", monorepoRoot)
		return
	}

	fmt.Printf("The analysis server for %s belongs to another process and was left running.\n", monorepoRoot)
	fmt.Println("Stop it from the process that started it, or with 'rescan serve'.")
}

// runServerStatus reports whether an analysis server socket is live for
// the project's monorepo root.
func runServerStatus(cmd *cobra.Command, args []string) {
	monorepoRoot, _, err := resolveMonorepoRoot(argOrEmpty(args))
	if err != nil {
		log.Fatalf("Error locating the project: %v", err)
	}

	socketPath := registry.SocketPath(monorepoRoot)
	if _, err := os.Stat(socketPath); err == nil {
		fmt.Printf("Analysis server running for %s (socket %s)\n", monorepoRoot, socketPath)
		return
	}
	fmt.Printf("No analysis server is running for %s\n", monorepoRoot)
}

// runServerLog prints the tail of the analysis server log captured by
// this process's engine. Logs of servers owned by other processes are
// not reachable from here; the serve process exposes its own through
// GET /v1/analysis/servers/log.
func runServerLog(cmd *cobra.Command, args []string) {
	path := argOrEmpty(args)
	if path == "" {
		path = "."
	}

	projectRoot, err := workspace.FindProjectRoot(path)
	if err != nil {
		log.Fatalf("Error locating the project: %v", err)
	}

	svc := analysis.NewService(cfg.Analysis.ServiceConfig())
	defer svc.Close()

	lines, ok := svc.ShowServerLog(projectRoot)
	if !ok {
		fmt.Printf("No server log captured by this process for %s\n", projectRoot)
		fmt.Println("Logs of servers started by 'rescan serve' are available at GET /v1/analysis/servers/log.")
		return
	}
	for _, line := range lines {
		fmt.Println(line)
	}
}
