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
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// analysisSubcommand and analysisOutputFlag select the one-shot
	// analysis mode with structured output.
	analysisSubcommand = "reanalyze"
	analysisOutputFlag = "-json"

	// distressSignature on a stderr line marks corrupted or stale build
	// artifacts. The compiled-module extension only ever appears there
	// when the tool failed to load one.
	distressSignature = ".cmt"

	// defaultRunTimeout bounds a single analysis run.
	defaultRunTimeout = 2 * time.Minute

	// maxStderrLine caps the stderr scanner's token size.
	maxStderrLine = 1024 * 1024
)

// =============================================================================
// RUNNER
// =============================================================================

// Runner executes one-shot analysis invocations.
//
// Description:
//
//	Each Run spawns an independent subprocess, distinct from any
//	long-lived server for the same root. The zero value is not usable;
//	construct with NewRunner.
//
// Thread Safety: Safe for concurrent use; Run holds no shared state.
type Runner struct {
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithTimeout overrides the per-run deadline.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) {
		if d > 0 {
			r.timeout = d
		}
	}
}

// WithLogger overrides the runner's logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) {
		if l != nil {
			r.logger = l
		}
	}
}

// NewRunner creates a Runner with the default timeout.
func NewRunner(opts ...Option) *Runner {
	r := &Runner{
		timeout: defaultRunTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes one analysis pass against a monorepo root.
//
// Description:
//
//	Spawns `<binary> reanalyze -json` with root as working directory.
//	Stdout is accumulated until the process closes and parsed as the
//	report document; stderr is scanned line by line for the distress
//	signature. A matched signature with unparseable output yields
//	ErrStaleArtifacts; unparseable output alone yields a
//	MalformedOutputError carrying the command line, directory, and raw
//	output head. A parseable report with distress lines is returned with
//	StaleArtifacts set so callers can still surface the rebuild hint.
//
// Inputs:
//
//	ctx - Context bounding the run; nil is rejected
//	root - Monorepo root, used as the working directory
//	binaryPath - Resolved analysis binary
//
// Outputs:
//
//	*Report - Parsed diagnostic items, nil on failure
//	error - ErrInvalidInput, ErrSpawnFailed, ErrRunTimeout,
//	        ErrStaleArtifacts, or a MalformedOutputError
func (r *Runner) Run(ctx context.Context, root, binaryPath string) (*Report, error) {
	if ctx == nil {
		return nil, fmt.Errorf("%w: ctx must not be nil", ErrInvalidInput)
	}
	if root == "" || binaryPath == "" {
		return nil, fmt.Errorf("%w: root and binaryPath are required", ErrInvalidInput)
	}

	runID := uuid.NewString()
	start := time.Now()

	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, binaryPath, analysisSubcommand, analysisOutputFlag)
	cmd.Dir = root
	commandLine := strings.Join(cmd.Args, " ")

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stdout pipe: %v", ErrSpawnFailed, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stderr pipe: %v", ErrSpawnFailed, err)
	}

	if err := cmd.Start(); err != nil {
		recordRun(ctx, "spawn_failed", time.Since(start))
		return nil, fmt.Errorf("%w: %s: %v", ErrSpawnFailed, commandLine, err)
	}
	if cmd.Process == nil {
		recordRun(ctx, "spawn_failed", time.Since(start))
		return nil, fmt.Errorf("%w: no process identity for %s", ErrSpawnFailed, binaryPath)
	}

	r.logger.Debug("Analysis run started",
		slog.String("run_id", runID),
		slog.String("root", root),
		slog.String("command", commandLine),
	)

	var output bytes.Buffer
	outDone := make(chan error, 1)
	go func() {
		_, copyErr := io.Copy(&output, stdout)
		outDone <- copyErr
	}()

	distress := make(chan bool, 1)
	go func() {
		distress <- r.scanStderr(runID, stderr)
	}()

	waitErr := <-outDone
	sawDistress := <-distress
	exitErr := cmd.Wait()

	elapsed := time.Since(start)

	if runCtx.Err() == context.DeadlineExceeded {
		recordRun(ctx, "timeout", elapsed)
		return nil, fmt.Errorf("%w: %s after %v", ErrRunTimeout, commandLine, r.timeout)
	}
	if runCtx.Err() != nil {
		// The process was killed mid-run; whatever stdout it produced
		// is truncated and must not be mistaken for tool output.
		recordRun(ctx, "cancelled", elapsed)
		return nil, fmt.Errorf("analysis run cancelled: %s: %w", commandLine, runCtx.Err())
	}
	if waitErr != nil {
		recordRun(ctx, "io_error", elapsed)
		return nil, fmt.Errorf("%w: reading output of %s: %v", ErrSpawnFailed, commandLine, waitErr)
	}

	items, parseErr := parseReport(output.Bytes())
	if parseErr != nil {
		recordRun(ctx, "malformed", elapsed)
		if sawDistress {
			// Distress explains the garbage output. The specific hint
			// beats the generic malformed report.
			return nil, fmt.Errorf("%w (run %s, root %s)", ErrStaleArtifacts, runID, root)
		}
		return nil, &MalformedOutputError{
			Command: commandLine,
			Dir:     root,
			Output:  output.Bytes(),
			Err:     parseErr,
		}
	}

	if exitErr != nil {
		// Tools in this family exit nonzero when they report findings.
		// A parsed report wins over the exit code.
		r.logger.Debug("Analysis run exited nonzero with parseable output",
			slog.String("run_id", runID),
			slog.Any("exit_error", exitErr),
		)
	}

	r.logger.Info("Analysis run completed",
		slog.String("run_id", runID),
		slog.String("root", root),
		slog.Int("items", len(items)),
		slog.Duration("elapsed", elapsed),
		slog.Bool("stale_artifacts", sawDistress),
	)
	recordRun(ctx, "ok", elapsed)
	recordItems(ctx, len(items))

	return &Report{
		RunID:          runID,
		Items:          items,
		StaleArtifacts: sawDistress,
	}, nil
}

// scanStderr mirrors stderr lines to the debug log and reports whether
// the distress signature was seen.
func (r *Runner) scanStderr(runID string, stderr io.Reader) bool {
	scanner := bufio.NewScanner(stderr)
	scanner.Buffer(make([]byte, 0, 64*1024), maxStderrLine)

	saw := false
	for scanner.Scan() {
		line := scanner.Text()
		if strings.Contains(line, distressSignature) {
			saw = true
		}
		r.logger.Debug("Analysis run stderr",
			slog.String("run_id", runID),
			slog.String("line", line),
		)
	}
	return saw
}

// IsRecoverable reports whether an error from Run leaves the published
// diagnostics valid. Malformed output and stale artifacts require the
// caller to clear published state.
func IsRecoverable(err error) bool {
	return !errors.Is(err, ErrMalformedOutput) && !errors.Is(err, ErrStaleArtifacts)
}
