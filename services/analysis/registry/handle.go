// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package registry

import (
	"os/exec"
	"time"
)

// ServerHandle represents one analysis server registered for a monorepo root.
//
// A handle either owns its process (this registry spawned it) or merely
// records an externally started server detected via its control socket.
// Only owned handles carry a process reference.
//
// Thread Safety: Immutable after registration.
type ServerHandle struct {
	// Root is the monorepo root this server analyzes. Registry key.
	Root string

	// SocketPath is <Root>/<socket filename>. Its existence on disk is
	// the liveness signal; no data is read from it.
	SocketPath string

	// Owned is true only if this registry spawned the process. Governs
	// whether Stop may terminate it.
	Owned bool

	// StartedAt records registration time.
	StartedAt time.Time

	cmd  *exec.Cmd
	sink *LogSink
	gen  uint64
}

// Pid returns the server's process id, or 0 for adopted handles.
func (h *ServerHandle) Pid() int {
	if h.cmd == nil || h.cmd.Process == nil {
		return 0
	}
	return h.cmd.Process.Pid
}

// LogSink returns the handle's output sink.
func (h *ServerHandle) LogSink() *LogSink {
	return h.sink
}

// HandleInfo is a read-only snapshot of a handle for status surfaces.
type HandleInfo struct {
	Root       string    `json:"root"`
	SocketPath string    `json:"socket_path"`
	Owned      bool      `json:"owned"`
	Pid        int       `json:"pid,omitempty"`
	StartedAt  time.Time `json:"started_at"`
}

// info snapshots the handle.
func (h *ServerHandle) info() HandleInfo {
	return HandleInfo{
		Root:       h.Root,
		SocketPath: h.SocketPath,
		Owned:      h.Owned,
		Pid:        h.Pid(),
		StartedAt:  h.StartedAt,
	}
}
