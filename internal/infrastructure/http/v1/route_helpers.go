package v1

import (
	"github.com/gin-gonic/gin"

	"logibill/internal/domain/auth"
	"logibill/internal/infrastructure/http/v1/middleware"
)

// NumberingRouteHandler defines the endpoints of the numbering store.
type NumberingRouteHandler interface {
	ListConfigs(c *gin.Context)
	GetConfig(c *gin.Context)
	Advance(c *gin.Context)
	CheckDuplicate(c *gin.Context)
	SaveConfig(c *gin.Context)
	RecordDocument(c *gin.Context)
}

// RegisterNumberingRoutes wires the numbering endpoints with their required scopes.
//
// Reads need numbering:read, allocation and document registration need
// numbering:write, and changing a config needs numbering:admin.
func RegisterNumberingRoutes(group *gin.RouterGroup, handler NumberingRouteHandler) {
	read := middleware.RequireScope(auth.ScopeRead)
	write := middleware.RequireScope(auth.ScopeWrite)
	admin := middleware.RequireScope(auth.ScopeAdmin)

	group.GET("/configs", read, handler.ListConfigs)
	group.GET("/configs/:type", read, handler.GetConfig)
	group.POST("/configs", admin, handler.SaveConfig)
	group.PUT("/configs/:type/current", write, handler.Advance)
	group.POST("/duplicates/check", read, handler.CheckDuplicate)
	group.POST("/documents", write, handler.RecordDocument)
}
