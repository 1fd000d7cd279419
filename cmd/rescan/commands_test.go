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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_Wiring(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"analyze", "watch", "server", "serve", "version"} {
		assert.True(t, names[want], "missing subcommand %q", want)
	}

	subNames := make(map[string]bool)
	for _, c := range serverCmd.Commands() {
		subNames[c.Name()] = true
	}
	for _, want := range []string{"start", "stop", "status", "log"} {
		assert.True(t, subNames[want], "missing server subcommand %q", want)
	}

	require.NotNil(t, rootCmd.PersistentFlags().Lookup("config"))
	require.NotNil(t, analyzeCmd.Flags().Lookup("no-server"))
	require.NotNil(t, serveCmd.Flags().Lookup("port"))
}

func TestServerLogCommand_ScopesToOwningProcess(t *testing.T) {
	// Server logs live in the memory of the spawning process; the help
	// text must not suggest this command can read another process's log.
	assert.True(t, strings.Contains(serverLogCmd.Long, "started by this process"),
		"log help must state the owning-process scope")
	assert.True(t, strings.Contains(serverLogCmd.Long, "/v1/analysis/servers/log"),
		"log help must point at the serve endpoint for serve-owned servers")
}
