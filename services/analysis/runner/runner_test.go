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
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"testing"
	"time"
)

// fakeAnalysis writes a shell script that prints the given stdout and
// stderr and exits with the given code.
func fakeAnalysis(t *testing.T, stdout, stderr string, exitCode int) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell-script fake binary requires a unix shell")
	}
	path := filepath.Join(t.TempDir(), "fake-analysis")
	script := "#!/bin/sh\n" +
		"cat <<'STDOUT_EOF'\n" + stdout + "\nSTDOUT_EOF\n" +
		"cat >&2 <<'STDERR_EOF'\n" + stderr + "\nSTDERR_EOF\n" +
		"exit " + strconv.Itoa(exitCode) + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write fake binary: %v", err)
	}
	return path
}

const validReport = `[
  {
    "name": "Warning Dead Value",
    "kind": "value",
    "file": "src/App.res",
    "range": [4, 0, 4, 10],
    "message": "fooVar is never used",
    "annotate": {"line": 4, "character": 0, "text": "_fooVar", "action": "Suppress"}
  },
  {
    "name": "Warning Dead Module",
    "kind": "module",
    "file": "src/Util.res",
    "range": [-1, 0, -1, 0],
    "message": "Util is a dead module"
  }
]`

func TestRun_RequiresContext(t *testing.T) {
	r := NewRunner()
	_, err := r.Run(nil, "/tmp", "/bin/true") //nolint:staticcheck
	if !errors.Is(err, ErrInvalidInput) {
		t.Errorf("Run(nil ctx) error = %v, want ErrInvalidInput", err)
	}
}

func TestRun_ParsesReport(t *testing.T) {
	r := NewRunner()
	root := t.TempDir()
	bin := fakeAnalysis(t, validReport, "", 0)

	report, err := r.Run(context.Background(), root, bin)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if report.RunID == "" {
		t.Error("report has no run ID")
	}
	if len(report.Items) != 2 {
		t.Fatalf("len(Items) = %d, want 2", len(report.Items))
	}

	first := report.Items[0]
	if first.Message != "fooVar is never used" {
		t.Errorf("Items[0].Message = %q", first.Message)
	}
	if first.Range != [4]int{4, 0, 4, 10} {
		t.Errorf("Items[0].Range = %v", first.Range)
	}
	if first.Annotate == nil {
		t.Fatal("Items[0].Annotate is nil")
	}
	if first.Annotate.Text != "_fooVar" || first.Annotate.Line != 4 {
		t.Errorf("Items[0].Annotate = %+v", first.Annotate)
	}

	second := report.Items[1]
	if second.Annotate != nil {
		t.Error("Items[1].Annotate should be nil")
	}
	if second.Range[0] != -1 {
		t.Errorf("Items[1].Range[0] = %d, want sentinel -1 preserved", second.Range[0])
	}
	if report.StaleArtifacts {
		t.Error("StaleArtifacts should be false without distress output")
	}
}

func TestRun_NonzeroExitWithParseableOutput(t *testing.T) {
	r := NewRunner()
	root := t.TempDir()
	bin := fakeAnalysis(t, validReport, "", 1)

	report, err := r.Run(context.Background(), root, bin)
	if err != nil {
		t.Fatalf("Run() error = %v, want parsed report despite exit code", err)
	}
	if len(report.Items) != 2 {
		t.Errorf("len(Items) = %d, want 2", len(report.Items))
	}
}

func TestRun_MalformedOutput(t *testing.T) {
	r := NewRunner()
	root := t.TempDir()
	bin := fakeAnalysis(t, "this is not json", "", 0)

	_, err := r.Run(context.Background(), root, bin)
	if !errors.Is(err, ErrMalformedOutput) {
		t.Fatalf("Run() error = %v, want ErrMalformedOutput", err)
	}

	var malformed *MalformedOutputError
	if !errors.As(err, &malformed) {
		t.Fatal("error is not a *MalformedOutputError")
	}
	if malformed.Dir != root {
		t.Errorf("Dir = %q, want %q", malformed.Dir, root)
	}
	if !strings.Contains(malformed.Command, analysisSubcommand) {
		t.Errorf("Command = %q, want it to carry the subcommand", malformed.Command)
	}
	if !strings.Contains(string(malformed.Output), "this is not json") {
		t.Errorf("Output = %q, want raw output preserved", malformed.Output)
	}
}

func TestRun_DistressWithGarbageOutput(t *testing.T) {
	r := NewRunner()
	root := t.TempDir()
	bin := fakeAnalysis(t, "boom", "cannot read src/App.cmt, rebuild the project", 0)

	_, err := r.Run(context.Background(), root, bin)
	if !errors.Is(err, ErrStaleArtifacts) {
		t.Errorf("Run() error = %v, want ErrStaleArtifacts", err)
	}
}

func TestRun_DistressWithParseableOutput(t *testing.T) {
	r := NewRunner()
	root := t.TempDir()
	bin := fakeAnalysis(t, "[]", "stale src/App.cmt detected", 0)

	report, err := r.Run(context.Background(), root, bin)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if !report.StaleArtifacts {
		t.Error("StaleArtifacts should be true when the signature was seen")
	}
}

func TestRun_SpawnFailure(t *testing.T) {
	r := NewRunner()
	root := t.TempDir()

	_, err := r.Run(context.Background(), root, filepath.Join(root, "missing-binary"))
	if !errors.Is(err, ErrSpawnFailed) {
		t.Errorf("Run() error = %v, want ErrSpawnFailed", err)
	}
}

func TestRun_Timeout(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell-script fake binary requires a unix shell")
	}
	root := t.TempDir()
	bin := filepath.Join(t.TempDir(), "slow-analysis")
	script := "#!/bin/sh\nsleep 30\n"
	if err := os.WriteFile(bin, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}

	r := NewRunner(WithTimeout(200 * time.Millisecond))
	_, err := r.Run(context.Background(), root, bin)
	if !errors.Is(err, ErrRunTimeout) {
		t.Errorf("Run() error = %v, want ErrRunTimeout", err)
	}
}

func TestRun_ParentCancellation(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell-script fake binary requires a unix shell")
	}
	root := t.TempDir()
	bin := filepath.Join(t.TempDir(), "slow-analysis")
	script := "#!/bin/sh\nsleep 30\n"
	if err := os.WriteFile(bin, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(200 * time.Millisecond)
		cancel()
	}()

	r := NewRunner()
	_, err := r.Run(ctx, root, bin)
	if err == nil {
		t.Fatal("Run() = nil, want cancellation error")
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Run() error = %v, want it to wrap context.Canceled", err)
	}
	// The killed process's truncated stdout must not surface as a
	// malformed report, which would wipe published diagnostics.
	if errors.Is(err, ErrMalformedOutput) {
		t.Errorf("Run() error = %v, must not be ErrMalformedOutput", err)
	}
	if !IsRecoverable(err) {
		t.Error("cancellation must be recoverable")
	}
}

func TestIsRecoverable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"spawn failure", ErrSpawnFailed, true},
		{"timeout", ErrRunTimeout, true},
		{"malformed", &MalformedOutputError{Err: errors.New("bad")}, false},
		{"stale artifacts", ErrStaleArtifacts, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsRecoverable(tt.err); got != tt.want {
				t.Errorf("IsRecoverable(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
