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
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/avialle/rescan/services/analysis/reconcile"
	"github.com/avialle/rescan/services/analysis/registry"
	"github.com/avialle/rescan/services/analysis/runner"
	"github.com/avialle/rescan/services/analysis/workspace"
)

// AnalysisRunner abstracts the one-shot runner for testing.
type AnalysisRunner interface {
	Run(ctx context.Context, root, binaryPath string) (*runner.Report, error)
}

// Publisher receives the new published state for a monorepo root after
// every reconciliation, including explicit clears.
type Publisher func(root string, state reconcile.State)

// Config holds the service's tunables.
type Config struct {
	// ManageServers controls whether a long-lived analysis server is
	// ensured per monorepo root before each run.
	ManageServers bool

	// LogTailLines is how many server log lines ShowServerLog returns.
	LogTailLines int

	// MaxConcurrentRuns bounds the AnalyzeFiles fan-out.
	MaxConcurrentRuns int
}

// DefaultConfig returns the production configuration.
func DefaultConfig() Config {
	return Config{
		ManageServers:     true,
		LogTailLines:      100,
		MaxConcurrentRuns: 4,
	}
}

// =============================================================================
// SERVICE
// =============================================================================

// Service is the orchestrating analysis engine.
//
// Description:
//
//	Holds the server registry, the one-shot runner, and the published
//	diagnostics state for every monorepo root it has analyzed. All state
//	lives on the instance; construct with NewService and Close at
//	shutdown.
//
// Thread Safety: Safe for concurrent use.
type Service struct {
	cfg      Config
	registry *registry.Registry
	runner   AnalysisRunner
	publish  Publisher
	logger   *slog.Logger

	mu        sync.Mutex
	states    map[string]reconcile.State
	indexes   map[string]*reconcile.ActionIndex
	nextSeq   map[string]uint64
	published map[string]uint64
	closed    bool
}

// Option configures a Service.
type Option func(*Service)

// WithRegistry replaces the server registry.
func WithRegistry(r *registry.Registry) Option {
	return func(s *Service) {
		if r != nil {
			s.registry = r
		}
	}
}

// WithRunner replaces the one-shot runner.
func WithRunner(r AnalysisRunner) Option {
	return func(s *Service) {
		if r != nil {
			s.runner = r
		}
	}
}

// WithPublisher sets the hook invoked after every reconciliation.
func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publish = p }
}

// WithLogger overrides the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService creates a Service with the given configuration.
func NewService(cfg Config, opts ...Option) *Service {
	if cfg.LogTailLines <= 0 {
		cfg.LogTailLines = DefaultConfig().LogTailLines
	}
	if cfg.MaxConcurrentRuns <= 0 {
		cfg.MaxConcurrentRuns = DefaultConfig().MaxConcurrentRuns
	}
	s := &Service{
		cfg:       cfg,
		registry:  registry.NewRegistry(),
		runner:    runner.NewRunner(),
		logger:    slog.Default(),
		states:    make(map[string]reconcile.State),
		indexes:   make(map[string]*reconcile.ActionIndex),
		nextSeq:   make(map[string]uint64),
		published: make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AnalyzeFile runs the full pipeline for one changed file.
//
// Description:
//
//	Resolves the project root from the file, locates the analysis
//	binary, derives the monorepo root, ensures a server when management
//	is enabled, executes a one-shot run, and reconciles the results into
//	the published state. On malformed output or stale artifacts the
//	published diagnostics for the root are cleared before the error
//	surfaces; stale results are never left visible.
//
// Inputs:
//
//	ctx - Context bounding resolution and the run
//	filePath - Absolute path of the changed document
//
// Outputs:
//
//	error - Resolution, spawn, or run failure; nil when results were
//	        published or discarded as stale
func (s *Service) AnalyzeFile(ctx context.Context, filePath string) error {
	if ctx == nil {
		return fmt.Errorf("%w: ctx must not be nil", ErrInvalidInput)
	}
	if filePath == "" {
		return fmt.Errorf("%w: filePath is required", ErrInvalidInput)
	}
	if s.isClosed() {
		return ErrServiceClosed
	}

	start := time.Now()

	projectRoot, err := workspace.FindProjectRoot(filePath)
	if err != nil {
		return fmt.Errorf("resolve project root for %s: %w", filePath, err)
	}

	binaryPath, err := workspace.FindBinary(projectRoot, workspace.BinaryAnalysis)
	if err != nil {
		return fmt.Errorf("locate analysis binary under %s: %w", projectRoot, err)
	}

	monorepoRoot := projectRoot
	if derived, derr := workspace.DeriveMonorepoRoot(binaryPath); derr == nil {
		monorepoRoot = derived
	} else {
		s.logger.Debug("Binary outside a dependency install, using project root",
			slog.String("binary", binaryPath),
			slog.String("project_root", projectRoot),
		)
	}

	if s.cfg.ManageServers {
		if _, err := s.registry.EnsureStarted(ctx, monorepoRoot, binaryPath); err != nil {
			return fmt.Errorf("ensure analysis server for %s: %w", monorepoRoot, err)
		}
	}

	seq := s.claimSeq(monorepoRoot)

	report, err := s.runner.Run(ctx, monorepoRoot, binaryPath)
	if err != nil {
		if !runner.IsRecoverable(err) {
			s.clearRoot(monorepoRoot, seq)
		}
		return fmt.Errorf("analysis run for %s: %w", monorepoRoot, err)
	}

	if report.StaleArtifacts {
		s.logger.Warn("Analysis saw stale build artifacts, a clean rebuild is recommended",
			slog.String("root", monorepoRoot),
			slog.String("run_id", report.RunID),
		)
	}

	if s.commit(monorepoRoot, seq, report.Items) {
		recordAnalysis(ctx, "published", time.Since(start))
	} else {
		s.logger.Debug("Discarding stale analysis results",
			slog.String("root", monorepoRoot),
			slog.Uint64("seq", seq),
			slog.String("run_id", report.RunID),
		)
		recordAnalysis(ctx, "stale_dropped", time.Since(start))
	}
	return nil
}

// AnalyzeFiles analyzes several files with bounded concurrency. The
// first failure cancels the remaining runs.
func (s *Service) AnalyzeFiles(ctx context.Context, filePaths []string) error {
	if ctx == nil {
		return fmt.Errorf("%w: ctx must not be nil", ErrInvalidInput)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.MaxConcurrentRuns)
	for _, path := range filePaths {
		g.Go(func() error {
			return s.AnalyzeFile(gctx, path)
		})
	}
	return g.Wait()
}

// claimSeq reserves the next run sequence number for a root.
func (s *Service) claimSeq(root string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSeq[root]++
	return s.nextSeq[root]
}

// commit reconciles a run's items into the published state unless a
// newer run for the same root already published. Returns whether the
// results were published.
func (s *Service) commit(root string, seq uint64, items []runner.ReportItem) bool {
	s.mu.Lock()
	if s.published[root] > seq {
		s.mu.Unlock()
		return false
	}
	s.published[root] = seq

	newState, index := reconcile.Reconcile(items, s.states[root])
	s.states[root] = newState
	s.indexes[root] = index
	snapshot := newState.Clone()
	publish := s.publish
	s.mu.Unlock()

	if publish != nil {
		publish(root, snapshot)
	}
	return true
}

// clearRoot replaces every published diagnostic list for a root with an
// explicit empty list and drops its action index. The clear obeys the
// same per-root ordering as commit: a failed run never wipes results
// published by a newer run.
func (s *Service) clearRoot(root string, seq uint64) {
	s.mu.Lock()
	if s.published[root] > seq {
		s.mu.Unlock()
		s.logger.Debug("Skipping diagnostics clear, a newer run already published",
			slog.String("root", root),
			slog.Uint64("seq", seq),
		)
		return
	}
	s.published[root] = seq
	prev := s.states[root]
	cleared := make(reconcile.State, len(prev))
	for file := range prev {
		cleared[file] = []reconcile.Diagnostic{}
	}
	s.states[root] = cleared
	s.indexes[root] = reconcile.NewActionIndex()
	snapshot := cleared.Clone()
	publish := s.publish
	s.mu.Unlock()

	s.logger.Warn("Cleared published diagnostics after failed run",
		slog.String("root", root),
		slog.Int("files_cleared", len(snapshot)),
	)
	if publish != nil {
		publish(root, snapshot)
	}
}

// Diagnostics returns a snapshot of the published state across all
// monorepo roots, merged by file path.
func (s *Service) Diagnostics() reconcile.State {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged := make(reconcile.State)
	for _, state := range s.states {
		for file, diags := range state {
			cp := make([]reconcile.Diagnostic, len(diags))
			copy(cp, diags)
			merged[file] = cp
		}
	}
	return merged
}

// ActionsFor returns the quick-fix actions indexed for an exact file and
// range, across all roots.
func (s *Service) ActionsFor(file string, rng reconcile.Range) []reconcile.FixAction {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, index := range s.indexes {
		if actions := index.ActionsFor(file, rng); len(actions) > 0 {
			return actions
		}
	}
	return nil
}

// ShowServerLog returns the tail of the server log for a project root.
//
// Description:
//
//	Looks up the registry sink by the given root first. On a miss the
//	monorepo root is re-derived through binary location and the lookup
//	retried once, covering callers that only know a sub-package root.
//	The boolean return lets callers react when no log exists.
func (s *Service) ShowServerLog(root string) ([]string, bool) {
	if sink, ok := s.registry.FindLogSink(root); ok {
		return sink.Tail(s.cfg.LogTailLines), true
	}

	binaryPath, err := workspace.FindBinary(root, workspace.BinaryAnalysis)
	if err != nil {
		return nil, false
	}
	monorepoRoot, err := workspace.DeriveMonorepoRoot(binaryPath)
	if err != nil {
		return nil, false
	}
	if sink, ok := s.registry.FindLogSink(monorepoRoot); ok {
		return sink.Tail(s.cfg.LogTailLines), true
	}
	return nil, false
}

// Servers returns snapshots of all managed server handles.
func (s *Service) Servers() []registry.HandleInfo {
	return s.registry.Handles()
}

// StopServer stops the server for one monorepo root.
func (s *Service) StopServer(root string) {
	s.registry.Stop(root)
}

// StopServers stops every managed server. External servers are only
// forgotten, never killed.
func (s *Service) StopServers() {
	s.registry.StopAll()
}

// Close stops all servers and marks the service unusable.
func (s *Service) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.registry.Close()
}

func (s *Service) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
