// Package router assembles the Echo instance: global middleware, the error
// handler and every route under /api/v1.
package router

import (
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/tourbook/tours-api/internal/config"
	"github.com/tourbook/tours-api/internal/handler"
	"github.com/tourbook/tours-api/internal/metrics"
	"github.com/tourbook/tours-api/internal/middleware"
)

// Deps are the collaborators the routes are wired to.  Redis may be nil.
type Deps struct {
	Development bool
	Log         *zap.Logger
	Auth        middleware.Authenticator
	Tours       *handler.TourHandler
	Reviews     *handler.ReviewHandler
	Users       *handler.UserHandler
	Metrics     *metrics.Metrics
	Redis       *redis.Client
	RateLimit   config.RateLimitConfig
	Cache       config.CacheConfig
}

// New builds the HTTP server.
func New(d Deps) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.HTTPErrorHandler = middleware.ErrorHandler(d.Development, d.Log)

	// Recover first so panics anywhere below reach the error handler.
	e.Use(echomw.Recover())
	e.Use(echomw.RequestID())
	e.Use(middleware.RequestLogger(d.Log))
	if d.Metrics != nil {
		e.Use(d.Metrics.Middleware())
	}
	e.Use(echomw.Secure())         // security headers
	e.Use(echomw.BodyLimit("10K")) // reject oversized JSON bodies with 413

	RegisterRoutes(e, d.Metrics) // health and metrics stay outside the rate limit

	api := e.Group("/api", middleware.RateLimit(d.RateLimit, d.Redis, d.Log))
	v1 := api.Group("/v1")
	protect := middleware.Protect(d.Auth) // shared by every resource group

	RegisterTours(v1, d, protect)
	RegisterReviews(v1, d.Reviews, protect)
	RegisterUsers(v1, d.Users, protect)

	e.RouteNotFound("/*", middleware.NotFound)
	return e
}

// RegisterRoutes registers the operational endpoints that live outside the
// API prefix.
func RegisterRoutes(e *echo.Echo, m *metrics.Metrics) {
	e.GET("/healthz", handler.Health)
	if m != nil {
		e.GET("/metrics", echo.WrapHandler(m.Handler()))
	}
}
