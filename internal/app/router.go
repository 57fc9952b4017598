// internal/app/router.go
package app

import (
	authHandler "fleetdesk-service/internal/handlers/auth"
	pagesHandler "fleetdesk-service/internal/handlers/pages"
	placesHandler "fleetdesk-service/internal/handlers/places"

	"github.com/gin-gonic/gin"
)

type Handlers struct {
	AuthHandler   *authHandler.AuthHandler
	PagesHandler  *pagesHandler.PagesHandler
	PlacesHandler *placesHandler.PlacesHandler
	Health        gin.HandlerFunc
}

// SetupRouter registers every route. Middlewares, the gate included, must be
// attached to r before this is called.
func SetupRouter(r *gin.Engine, h *Handlers) {
	// ==================== Health Check ====================
	r.GET("/healthz", h.Health)

	// ==================== Auth ====================
	h.AuthHandler.RegisterRoutes(r)

	// ==================== Pages ====================
	h.PagesHandler.RegisterRoutes(r)

	// ==================== API ====================
	api := r.Group("/api/v1")
	h.PlacesHandler.RegisterRoutes(api)
}
