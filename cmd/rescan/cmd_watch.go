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
	"github.com/avialle/rescan/services/analysis/reconcile"
)

// runWatch watches a project tree and re-analyzes files as they are
// saved, printing each published diagnostics update.
func runWatch(cmd *cobra.Command, args []string) {
	root := "."
	if len(args) == 1 {
		root = args[0]
	}

	svcCfg := cfg.Analysis.ServiceConfig()
	if noServer {
		svcCfg.ManageServers = false
	}

	svc := analysis.NewService(svcCfg,
		analysis.WithPublisher(func(projectRoot string, state reconcile.State) {
			fmt.Printf("--- %s ---\n", projectRoot)
			printDiagnostics(state)
		}),
	)
	defer svc.Close()

	var opts []analysis.WatcherOption
	if d := cfg.Analysis.Debounce(); d > 0 {
		opts = append(opts, analysis.WithDebounce(d))
	}
	watcher, err := analysis.NewWatcher(root, svc, opts...)
	if err != nil {
		log.Fatalf("Error starting the watcher: %v", err)
	}
	defer watcher.Stop()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	slog.Info("watching for changes", "root", root)
	watcher.Start(ctx)
	slog.Info("watch stopped")
}
