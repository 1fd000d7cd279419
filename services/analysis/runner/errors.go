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
	"errors"
	"fmt"
)

// Sentinel errors for analysis runs.
var (
	// ErrInvalidInput indicates a nil context or missing root/binary.
	ErrInvalidInput = errors.New("invalid input")

	// ErrSpawnFailed indicates the one-shot subprocess could not start.
	ErrSpawnFailed = errors.New("failed to spawn analysis run")

	// ErrMalformedOutput indicates stdout did not parse as a report.
	ErrMalformedOutput = errors.New("analysis output is not valid JSON")

	// ErrStaleArtifacts indicates the distress signature was seen on
	// stderr: build artifacts are corrupt or out of date and a clean
	// rebuild is needed.
	ErrStaleArtifacts = errors.New("build artifacts are stale; clean and rebuild the project")

	// ErrRunTimeout indicates the run exceeded its deadline.
	ErrRunTimeout = errors.New("analysis run timed out")
)

// MalformedOutputError carries everything needed to reproduce a failed
// parse: the exact command line, working directory, and the head of the
// raw output.
type MalformedOutputError struct {
	// Command is the full command line of the run.
	Command string

	// Dir is the working directory the run used.
	Dir string

	// Output is the raw stdout (possibly truncated for display).
	Output []byte

	// Err is the underlying parse error.
	Err error
}

// Error implements the error interface with a reproducible report.
func (e *MalformedOutputError) Error() string {
	head := e.Output
	if len(head) > 512 {
		head = head[:512]
	}
	return fmt.Sprintf("%v: %v (command: %s, dir: %s, output head: %q)",
		ErrMalformedOutput, e.Err, e.Command, e.Dir, head)
}

// Unwrap makes errors.Is(err, ErrMalformedOutput) hold.
func (e *MalformedOutputError) Unwrap() error {
	return ErrMalformedOutput
}
