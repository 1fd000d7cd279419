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
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/avialle/rescan/services/analysis/reconcile"
	"github.com/avialle/rescan/services/analysis/registry"
	"github.com/avialle/rescan/services/analysis/runner"
	"github.com/avialle/rescan/services/analysis/workspace"
)

// ServiceVersion is the analysis service version.
const ServiceVersion = "0.1.0"

// ErrorResponse is the uniform error payload.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// RunRequest asks for one-shot analysis of one or more files.
type RunRequest struct {
	Paths []string `json:"paths" binding:"required,min=1"`
}

// ActionsRequest identifies a diagnostic span to look up fixes for.
type ActionsRequest struct {
	File      string `form:"file" binding:"required"`
	StartLine int    `form:"startLine"`
	StartChar int    `form:"startChar"`
	EndLine   int    `form:"endLine"`
	EndChar   int    `form:"endChar"`
}

// Handlers contains the HTTP handlers for the analysis service.
type Handlers struct {
	svc *Service
}

// NewHandlers creates handlers for the given service.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

// HandleRun handles POST /v1/analysis/run.
//
// Description:
//
//	Runs the full pipeline for each requested file and returns the
//	merged diagnostics snapshot on success.
//
// Response:
//
//	200 OK: {"diagnostics": State}
//	400 Bad Request: Validation or resolution error
//	500 Internal Server Error: Spawn or run error
func (h *Handlers) HandleRun(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleRun")

	var req RunRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	logger.Info("Running analysis", "files", len(req.Paths))

	if err := h.svc.AnalyzeFiles(c.Request.Context(), req.Paths); err != nil {
		statusCode := http.StatusInternalServerError
		errCode := "RUN_FAILED"

		if errors.Is(err, workspace.ErrNoProjectRoot) {
			statusCode = http.StatusBadRequest
			errCode = "NO_PROJECT_ROOT"
		} else if errors.Is(err, workspace.ErrBinaryNotFound) {
			statusCode = http.StatusBadRequest
			errCode = "BINARY_NOT_FOUND"
		} else if errors.Is(err, runner.ErrStaleArtifacts) {
			errCode = "STALE_ARTIFACTS"
		} else if errors.Is(err, runner.ErrMalformedOutput) {
			errCode = "MALFORMED_OUTPUT"
		} else if errors.Is(err, ErrInvalidInput) {
			statusCode = http.StatusBadRequest
			errCode = "INVALID_REQUEST"
		}

		logger.Error("Analysis failed", "error", err)
		c.JSON(statusCode, ErrorResponse{
			Error: err.Error(),
			Code:  errCode,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"diagnostics": h.svc.Diagnostics(),
	})
}

// HandleDiagnostics handles GET /v1/analysis/diagnostics.
//
// An optional ?file= query narrows the snapshot to one file.
func (h *Handlers) HandleDiagnostics(c *gin.Context) {
	state := h.svc.Diagnostics()

	if file := c.Query("file"); file != "" {
		diags, ok := state[file]
		if !ok {
			diags = []reconcile.Diagnostic{}
		}
		c.JSON(http.StatusOK, gin.H{"file": file, "diagnostics": diags})
		return
	}

	c.JSON(http.StatusOK, gin.H{"diagnostics": state})
}

// HandleActions handles GET /v1/analysis/actions.
func (h *Handlers) HandleActions(c *gin.Context) {
	var req ActionsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "file query parameter is required",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	actions := h.svc.ActionsFor(req.File, reconcile.Range{
		StartLine: req.StartLine,
		StartChar: req.StartChar,
		EndLine:   req.EndLine,
		EndChar:   req.EndChar,
	})
	if actions == nil {
		actions = []reconcile.FixAction{}
	}
	c.JSON(http.StatusOK, gin.H{"actions": actions})
}

// HandleServers handles GET /v1/analysis/servers.
func (h *Handlers) HandleServers(c *gin.Context) {
	infos := h.svc.Servers()
	if infos == nil {
		infos = []registry.HandleInfo{}
	}
	c.JSON(http.StatusOK, gin.H{"servers": infos})
}

// HandleStopServers handles DELETE /v1/analysis/servers.
//
// With ?root= only that server is stopped; otherwise all of them.
// External servers are forgotten, never killed.
func (h *Handlers) HandleStopServers(c *gin.Context) {
	requestID := getOrCreateRequestID(c)
	logger := slog.With("request_id", requestID, "handler", "HandleStopServers")

	if root := c.Query("root"); root != "" {
		logger.Info("Stopping analysis server", "root", root)
		h.svc.StopServer(root)
	} else {
		logger.Info("Stopping all analysis servers")
		h.svc.StopServers()
	}
	c.Status(http.StatusNoContent)
}

// HandleServerLog handles GET /v1/analysis/servers/log.
func (h *Handlers) HandleServerLog(c *gin.Context) {
	root := c.Query("root")
	if root == "" {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "root query parameter is required",
			Code:  "INVALID_REQUEST",
		})
		return
	}

	lines, ok := h.svc.ShowServerLog(root)
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: "no server log for root",
			Code:  "LOG_NOT_FOUND",
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"root": root, "lines": lines})
}

// HandleHealth handles GET /v1/analysis/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"version": ServiceVersion,
	})
}

// HandleReady handles GET /v1/analysis/ready.
func (h *Handlers) HandleReady(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ready",
		"servers": len(h.svc.Servers()),
	})
}

// getOrCreateRequestID returns the inbound request ID or mints one.
func getOrCreateRequestID(c *gin.Context) string {
	if id := c.GetHeader("X-Request-ID"); id != "" {
		return id
	}
	return uuid.NewString()
}
