package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/express-reservations/internal/service"
)

// AvailabilityHandler serves the per-category availability listing.
type AvailabilityHandler struct {
	svc *service.AvailabilityService
	log *zap.Logger
}

func NewAvailabilityHandler(svc *service.AvailabilityService, log *zap.Logger) *AvailabilityHandler {
	if svc == nil {
		panic("nil service passed to NewAvailabilityHandler")
	}
	return &AvailabilityHandler{svc: svc, log: log.Named("http")}
}

// Check handles GET /v1/availability?startDate=...&endDate=...  Both
// dates are required and startDate must come before endDate.
func (h *AvailabilityHandler) Check(c echo.Context) error {
	start := c.QueryParam("startDate")
	end := c.QueryParam("endDate")
	if start == "" || end == "" {
		return badRequest(c, service.ErrInvalidDateRange.Code, "startDate and endDate are required")
	}
	rows, err := h.svc.Check(c.Request().Context(), start, end)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, rows)
}
