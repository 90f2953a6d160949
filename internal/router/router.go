// Package router wires handlers and middleware onto an Echo instance.
package router

import (
	"net/http"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/iliyamo/express-reservations/internal/config"
	"github.com/iliyamo/express-reservations/internal/handler"
	"github.com/iliyamo/express-reservations/internal/middleware"
)

// Handlers groups the HTTP handlers the router exposes.
type Handlers struct {
	Health       *handler.HealthHandler
	Availability *handler.AvailabilityHandler
	Reservations *handler.ReservationHandler
	Checkout     *handler.CheckoutHandler
}

// Options carries the cross-cutting settings.  A nil Redis client turns
// rate limiting and response caching off.
type Options struct {
	CORSOrigins []string
	RateLimit   config.RateLimitConfig
	Cache       config.CacheConfig
	Redis       *redis.Client
	Logger      *zap.Logger
}

// New builds the Echo instance with every route registered.
func New(h Handlers, opts Options) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(opts.Logger))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: origins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderOrigin, echo.HeaderContentType, echo.HeaderAccept},
	}))

	RegisterRoutes(e, h.Health)
	RegisterAPI(e, h, opts)
	return e
}

// RegisterRoutes registers the unversioned liveness endpoints.
func RegisterRoutes(e *echo.Echo, h *handler.HealthHandler) {
	e.GET("/", h.Root)
	e.GET("/healthz", h.Health)
}

// RegisterAPI registers the /v1 endpoints.  Writes are rate limited per
// client; the availability listing is served through the response cache.
func RegisterAPI(e *echo.Echo, h Handlers, opts Options) {
	limit := middleware.NewTokenBucket(opts.RateLimit, opts.Redis, opts.Logger)
	cache := middleware.NewRedisCache(opts.Cache, opts.Redis, opts.Logger)

	g := e.Group("/v1")
	g.GET("/availability", h.Availability.Check, cache)
	g.POST("/reservations", h.Reservations.Create, limit)
	g.GET("/reservations/:id", h.Reservations.Get)
	g.GET("/reservations/:id/ticket", h.Reservations.Ticket)
	g.POST("/checkout", h.Checkout.Pay, limit)
}
