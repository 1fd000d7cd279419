// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package analysis

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avialle/rescan/services/analysis/runner"
)

func TestWatchedSource(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"src/App.res", true},
		{"src/App.resi", true},
		{"src/APP.RES", true},
		{"src/App.ml", false},
		{"src/App.res.swp", false},
		{"rescript.json", false},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, watchedSource(tt.path))
		})
	}
}

func TestWatcher_TriggersAnalysisOnSave(t *testing.T) {
	root, srcFile := newProject(t)

	stub := &stubRunner{fn: func(int, string) (*runner.Report, error) {
		return &runner.Report{Items: nil}, nil
	}}

	svc := NewService(serviceConfig(), WithRunner(stub))
	defer svc.Close()

	w, err := NewWatcher(root, svc, WithDebounce(50*time.Millisecond))
	require.NoError(t, err)
	defer w.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Start(ctx)

	// Give the watches a moment to install.
	time.Sleep(200 * time.Millisecond)

	require.NoError(t, os.WriteFile(srcFile, []byte("let y = 2\n"), 0o644))

	deadline := time.After(3 * time.Second)
	for {
		select {
		case <-deadline:
			t.Fatal("save never triggered analysis")
		case <-time.After(50 * time.Millisecond):
			stub.mu.Lock()
			calls := stub.calls
			stub.mu.Unlock()
			if calls >= 1 {
				return
			}
		}
	}
}
