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
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// SocketFileName is the control socket marker at the monorepo root.
	// Existence signals a live server; no data is read from it here.
	SocketFileName = ".rescript-analysis.sock"

	// serverSubcommand starts the analysis binary in server mode.
	serverSubcommand = "server"

	// socketPollInterval and socketPollTimeout bound the wait for the
	// server to announce liveness after spawn.
	socketPollInterval = 100 * time.Millisecond
	socketPollTimeout  = 3 * time.Second
)

// exitEvent reports that an owned server process terminated.
type exitEvent struct {
	root string
	gen  uint64
	err  error
}

// =============================================================================
// REGISTRY
// =============================================================================

// Registry maps monorepo roots to managed analysis-server handles.
//
// Description:
//
//	Owns the start/detect/stop/cleanup lifecycle for long-lived analysis
//	servers. Construct one per process with NewRegistry, pass it by
//	reference to whatever needs it, and Close it at shutdown.
//
// Thread Safety: Safe for concurrent use.
type Registry struct {
	mu         sync.Mutex
	servers    map[string]*ServerHandle
	startLocks map[string]*sync.Mutex

	gen    atomic.Uint64
	exits  chan exitEvent
	done   chan struct{}
	closed sync.Once
}

// NewRegistry creates a registry and starts its exit-event consumer.
func NewRegistry() *Registry {
	r := &Registry{
		servers:    make(map[string]*ServerHandle),
		startLocks: make(map[string]*sync.Mutex),
		exits:      make(chan exitEvent, 16),
		done:       make(chan struct{}),
	}
	go r.consumeExits()
	return r
}

// SocketPath returns the control socket path for a monorepo root.
func SocketPath(root string) string {
	return filepath.Join(root, SocketFileName)
}

// EnsureStarted returns the server handle for a monorepo root, starting a
// server if none is running.
//
// Description:
//
//	If the control socket already exists on disk the server is adopted:
//	an unowned handle is registered (idempotently) and the external
//	process is never touched. Otherwise a new server subprocess is
//	spawned with root as its working directory, its output streamed into
//	the handle's LogSink, and the socket polled for up to 3 seconds. A
//	socket timeout is logged as a warning and the handle is returned
//	anyway; the one-shot analysis path does not require the socket.
//
// Inputs:
//
//	ctx - Context for cancellation of the socket wait
//	root - Monorepo root the server analyzes
//	binaryPath - Resolved analysis binary
//
// Outputs:
//
//	*ServerHandle - The registered handle (owned or adopted)
//	error - ErrSpawnFailed if no process identity was obtained
//
// Thread Safety:
//
//	Concurrent calls for the same root are serialized; at most one
//	process is spawned per root.
func (r *Registry) EnsureStarted(ctx context.Context, root, binaryPath string) (*ServerHandle, error) {
	if ctx == nil {
		return nil, fmt.Errorf("%w: ctx must not be nil", ErrInvalidInput)
	}
	if root == "" || binaryPath == "" {
		return nil, fmt.Errorf("%w: root and binaryPath are required", ErrInvalidInput)
	}

	lock := r.startLock(root)
	lock.Lock()
	defer lock.Unlock()

	socketPath := SocketPath(root)

	if _, err := os.Stat(socketPath); err == nil {
		return r.adopt(root, socketPath), nil
	}

	// No socket on disk. An owned entry means our server is alive but has
	// not announced yet; return it rather than spawning a duplicate. An
	// adopted entry whose socket vanished is a ghost: the external server
	// is gone, so forget it and start our own.
	r.mu.Lock()
	if h, ok := r.servers[root]; ok {
		if h.Owned {
			r.mu.Unlock()
			return h, nil
		}
		delete(r.servers, root)
	}
	r.mu.Unlock()

	handle, err := r.spawn(root, binaryPath, socketPath)
	if err != nil {
		return nil, err
	}

	if err := r.waitForSocket(ctx, socketPath); err != nil {
		slog.Warn("Analysis server did not announce liveness in time",
			slog.String("root", root),
			slog.Duration("waited", socketPollTimeout),
			slog.String("socket", socketPath),
		)
		recordSocketTimeout(ctx)
	}

	return handle, nil
}

// adopt registers (or returns the existing) unowned handle for a root whose
// socket predates us. The external process is never killed through it.
func (r *Registry) adopt(root, socketPath string) *ServerHandle {
	r.mu.Lock()
	defer r.mu.Unlock()

	if h, ok := r.servers[root]; ok {
		return h
	}

	h := &ServerHandle{
		Root:       root,
		SocketPath: socketPath,
		Owned:      false,
		StartedAt:  time.Now(),
		sink:       NewLogSink(root),
		gen:        r.gen.Add(1),
	}
	r.servers[root] = h

	slog.Info("Adopted running analysis server",
		slog.String("root", root),
		slog.String("socket", socketPath),
	)
	recordServerEvent(context.Background(), "adopted")
	return h
}

// spawn starts an owned server process and registers its handle.
func (r *Registry) spawn(root, binaryPath, socketPath string) (*ServerHandle, error) {
	cmd := exec.Command(binaryPath, serverSubcommand)
	cmd.Dir = root

	sink := NewLogSink(root)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stdout pipe: %v", ErrSpawnFailed, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("%w: stderr pipe: %v", ErrSpawnFailed, err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", ErrSpawnFailed, binaryPath, serverSubcommand, err)
	}
	if cmd.Process == nil {
		return nil, fmt.Errorf("%w: no process identity for %s", ErrSpawnFailed, binaryPath)
	}

	go sink.Consume("stdout", stdout)
	go sink.Consume("stderr", stderr)

	h := &ServerHandle{
		Root:       root,
		SocketPath: socketPath,
		Owned:      true,
		StartedAt:  time.Now(),
		cmd:        cmd,
		sink:       sink,
		gen:        r.gen.Add(1),
	}

	r.mu.Lock()
	r.servers[root] = h
	r.mu.Unlock()

	slog.Info("Analysis server started",
		slog.String("root", root),
		slog.Int("pid", h.Pid()),
		slog.String("binary", binaryPath),
	)
	recordServerEvent(context.Background(), "started")

	// Exit observer. Removal happens in the consumer goroutine only.
	go func() {
		err := cmd.Wait()
		select {
		case r.exits <- exitEvent{root: root, gen: h.gen, err: err}:
		case <-r.done:
		}
	}()

	return h, nil
}

// waitForSocket polls for the socket file at a fixed interval up to the
// bounded ceiling. Returns nil once the file appears.
func (r *Registry) waitForSocket(ctx context.Context, socketPath string) error {
	deadline := time.NewTimer(socketPollTimeout)
	defer deadline.Stop()
	tick := time.NewTicker(socketPollInterval)
	defer tick.Stop()

	start := time.Now()
	for {
		if _, err := os.Stat(socketPath); err == nil {
			recordSocketWait(ctx, time.Since(start))
			return nil
		}
		select {
		case <-tick.C:
		case <-deadline.C:
			return context.DeadlineExceeded
		case <-ctx.Done():
			return ctx.Err()
		case <-r.done:
			return ErrRegistryClosed
		}
	}
}

// consumeExits is the single goroutine allowed to remove handles on
// process exit.
func (r *Registry) consumeExits() {
	for {
		select {
		case ev := <-r.exits:
			r.removeIfCurrent(ev)
		case <-r.done:
			return
		}
	}
}

// removeIfCurrent drops the handle for an exited process unless the root
// has since been re-registered with a newer handle.
func (r *Registry) removeIfCurrent(ev exitEvent) {
	r.mu.Lock()
	h, ok := r.servers[ev.root]
	if ok && h.gen == ev.gen {
		delete(r.servers, ev.root)
	} else {
		ok = false
	}
	r.mu.Unlock()

	if ok {
		slog.Warn("Analysis server exited unexpectedly",
			slog.String("root", ev.root),
			slog.Any("exit_error", ev.err),
		)
		recordServerEvent(context.Background(), "exited")
	}
}

// Stop stops the server for a root, if any.
//
// Description:
//
//	Removes the handle unconditionally. The process is terminated and
//	the socket file deleted only for owned handles; an adopted external
//	server and its socket are left untouched. Cleanup is best-effort:
//	a missing socket file is not an error.
//
// Thread Safety: Safe for concurrent use; no-op when root is unknown.
func (r *Registry) Stop(root string) {
	r.mu.Lock()
	h, ok := r.servers[root]
	if ok {
		delete(r.servers, root)
	}
	r.mu.Unlock()

	if !ok {
		return
	}

	if h.Owned && h.cmd != nil && h.cmd.Process != nil {
		_ = h.cmd.Process.Kill()
		_ = os.Remove(h.SocketPath)
		slog.Info("Analysis server stopped",
			slog.String("root", root),
			slog.Int("pid", h.Pid()),
		)
		recordServerEvent(context.Background(), "stopped")
		return
	}

	slog.Info("Released external analysis server",
		slog.String("root", root),
	)
}

// StopAll applies Stop semantics to every registered root. Owned processes
// are terminated; external ones are only forgotten. Safe to call at any
// time, including concurrently with in-progress EnsureStarted calls.
func (r *Registry) StopAll() {
	r.mu.Lock()
	roots := make([]string, 0, len(r.servers))
	for root := range r.servers {
		roots = append(roots, root)
	}
	r.mu.Unlock()

	for _, root := range roots {
		r.Stop(root)
	}
}

// Close stops all owned servers and shuts down the exit consumer.
func (r *Registry) Close() {
	r.StopAll()
	r.closed.Do(func() { close(r.done) })
}

// FindLogSink returns the log sink registered for a monorepo root.
// Callers holding only a project root should re-derive the monorepo root
// and retry once before giving up.
func (r *Registry) FindLogSink(root string) (*LogSink, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.servers[root]
	if !ok {
		return nil, false
	}
	return h.sink, true
}

// Get returns the handle for a root, if registered.
func (r *Registry) Get(root string) (*ServerHandle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.servers[root]
	return h, ok
}

// Len returns the number of registered servers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.servers)
}

// Handles returns snapshots of all registered servers, sorted by root.
func (r *Registry) Handles() []HandleInfo {
	r.mu.Lock()
	infos := make([]HandleInfo, 0, len(r.servers))
	for _, h := range r.servers {
		infos = append(infos, h.info())
	}
	r.mu.Unlock()

	sort.Slice(infos, func(i, j int) bool { return infos[i].Root < infos[j].Root })
	return infos
}

// startLock returns the per-root startup lock, creating it on first use.
func (r *Registry) startLock(root string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	if l, ok := r.startLocks[root]; ok {
		return l
	}
	l := &sync.Mutex{}
	r.startLocks[root] = l
	return l
}
