package main

import (
	"callsync/internal/auth"
	"callsync/internal/httpapi"
	"callsync/internal/rbac"

	"github.com/gin-gonic/gin"
)

// registerRoutes wires HTTP routes to handlers.
// Keep this file free of business logic. Handlers should delegate to internal modules.
func registerRoutes(r *gin.Engine, authMW gin.HandlerFunc, h httpapi.Handlers) {
	// public
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// protected API group
	v1 := r.Group("/v1")
	v1.Use(authMW)
	{
		v1.GET("/me", func(c *gin.Context) {
			uid, _ := auth.UserID(c.Request.Context())
			role, _ := auth.Role(c.Request.Context())
			c.JSON(200, gin.H{"user_id": uid, "role": role})
		})

		bf := v1.Group("/backfill")
		{
			// Read-only endpoints are open to any authenticated role.
			read := bf.Group("")
			read.Use(rbac.RequireAnyRole(rbac.RoleViewer, rbac.RoleOperator, rbac.RoleAdmin))
			{
				read.GET("/progress", h.Progress)
				read.GET("/runs", h.ListRuns)
			}

			// Mutating endpoints require operator or admin.
			write := bf.Group("")
			write.Use(rbac.RequireAnyRole(rbac.RoleOperator, rbac.RoleAdmin))
			{
				write.POST("/start", h.StartBackfill)
				write.POST("/cancel", h.CancelBackfill)
			}
		}
	}
}
