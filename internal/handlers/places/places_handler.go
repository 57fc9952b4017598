// internal/handlers/places/places_handler.go
package places

import (
	"context"
	"net/http"

	xerrors "fleetdesk-service/internal/pkg/errors"
	"fleetdesk-service/internal/pkg/response"
	placesService "fleetdesk-service/internal/service/places"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type Service interface {
	Autocomplete(ctx context.Context, input, sessionToken string) ([]placesService.Prediction, error)
	Details(ctx context.Context, placeID, sessionToken string) (*placesService.Address, error)
}

type PlacesHandler struct {
	placesService Service
	logger        *zap.Logger
}

func NewPlacesHandler(placesService Service, logger *zap.Logger) *PlacesHandler {
	return &PlacesHandler{
		placesService: placesService,
		logger:        logger,
	}
}

// Autocomplete handles GET /places/autocomplete?input=&session_token=
func (h *PlacesHandler) Autocomplete(c *gin.Context) {
	preds, err := h.placesService.Autocomplete(c.Request.Context(), c.Query("input"), c.Query("session_token"))
	if err != nil {
		h.logger.Error("address autocomplete failed", zap.Error(err))
		response.Error(c, http.StatusBadGateway, "address lookup unavailable", nil)
		return
	}

	response.Success(c, http.StatusOK, "predictions retrieved", preds)
}

// Details handles GET /places/:place_id
func (h *PlacesHandler) Details(c *gin.Context) {
	addr, err := h.placesService.Details(c.Request.Context(), c.Param("place_id"), c.Query("session_token"))
	switch {
	case err == nil:
		response.Success(c, http.StatusOK, "address retrieved", addr)
	case xerrors.Is(err, xerrors.ErrNotFound):
		response.NotFound(c, "place not found")
	case xerrors.Is(err, xerrors.ErrInvalidInput):
		response.ValidationError(c, "invalid place id", err)
	default:
		h.logger.Error("place details failed", zap.String("place_id", c.Param("place_id")), zap.Error(err))
		response.Error(c, http.StatusBadGateway, "address lookup unavailable", nil)
	}
}

func (h *PlacesHandler) RegisterRoutes(r gin.IRoutes) {
	r.GET("/places/autocomplete", h.Autocomplete)
	r.GET("/places/:place_id", h.Details)
}
