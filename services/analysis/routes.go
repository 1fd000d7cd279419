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
	"github.com/gin-gonic/gin"
)

// RegisterRoutes registers all analysis routes with the router.
//
// Description:
//
//	Registers all /v1/analysis/* endpoints with the given Gin router
//	group. The group should already have any required middleware applied.
//
// Endpoints:
//
//	POST   /v1/analysis/run - Run analysis for one or more files
//	GET    /v1/analysis/diagnostics - Published diagnostics snapshot
//	GET    /v1/analysis/actions - Quick-fix actions for a span
//	GET    /v1/analysis/servers - Managed server handles
//	DELETE /v1/analysis/servers - Stop one or all servers
//	GET    /v1/analysis/servers/log - Tail of a server's log
//	GET    /v1/analysis/health - Health check
//	GET    /v1/analysis/ready - Readiness check
//
// Example:
//
//	svc := analysis.NewService(analysis.DefaultConfig())
//	handlers := analysis.NewHandlers(svc)
//
//	v1 := router.Group("/v1")
//	analysis.RegisterRoutes(v1, handlers)
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	grp := rg.Group("/analysis")
	{
		grp.POST("/run", handlers.HandleRun)
		grp.GET("/diagnostics", handlers.HandleDiagnostics)
		grp.GET("/actions", handlers.HandleActions)

		grp.GET("/servers", handlers.HandleServers)
		grp.DELETE("/servers", handlers.HandleStopServers)
		grp.GET("/servers/log", handlers.HandleServerLog)

		grp.GET("/health", handlers.HandleHealth)
		grp.GET("/ready", handlers.HandleReady)
	}
}
