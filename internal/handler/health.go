package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/express-reservations/internal/clock"
	"github.com/iliyamo/express-reservations/internal/tasks"
)

// StatsSource exposes background task counters.  *tasks.Runner
// satisfies it.
type StatsSource interface {
	Stats() tasks.Stats
}

// HealthHandler reports liveness for load balancers and monitoring.
type HealthHandler struct {
	stats StatsSource
	clock clock.Clock
}

func NewHealthHandler(stats StatsSource, clk clock.Clock) *HealthHandler {
	return &HealthHandler{stats: stats, clock: clk}
}

// Health handles GET /healthz.  The task counters make swallowed delivery
// failures visible.
func (h *HealthHandler) Health(c echo.Context) error {
	body := echo.Map{"status": "ok"}
	if h.stats != nil {
		body["tasks"] = h.stats.Stats()
	}
	return c.JSON(http.StatusOK, body)
}

// Root handles GET /.
func (h *HealthHandler) Root(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"status":    "ok",
		"message":   "API is running!",
		"timestamp": h.clock.Now().UTC(),
	})
}
