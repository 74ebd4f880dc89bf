package router

import (
	"github.com/labstack/echo/v4"

	"github.com/tourbook/tours-api/internal/handler"
	"github.com/tourbook/tours-api/internal/middleware"
	"github.com/tourbook/tours-api/internal/model"
)

// RegisterTours mounts /tours.  Reads are public and cached; writes need an
// admin or lead guide and drop the cache.
func RegisterTours(v1 *echo.Group, d Deps, protect echo.MiddlewareFunc) {
	t := d.Tours
	cache := middleware.Cache(d.Cache, d.Redis, d.Log)
	invalidate := middleware.InvalidateCache(d.Cache, d.Redis, d.Log)
	staff := middleware.RestrictTo(model.RoleAdmin, model.RoleLeadGuide)

	g := v1.Group("/tours")

	// ---- Reads ----
	g.GET("", t.GetAllTours, cache)
	g.GET("/top-5-cheap", t.GetAllTours, handler.AliasTopTours, cache) // alias runs before the cache keys the URL
	g.GET("/tour-stats", t.GetTourStats, cache)                        // must precede /:id
	g.GET("/:id", t.GetTour)                                           // not cached: embeds live reviews

	// ---- Writes ----
	g.POST("", t.CreateTour, protect, staff, invalidate)
	g.PATCH("/:id", t.UpdateTour, protect, staff, invalidate)
	g.DELETE("/:id", t.DeleteTour, protect, staff, invalidate)

	// ---- Nested reviews ----
	r := d.Reviews
	g.GET("/:tourId/reviews", r.GetAllReviews, protect)
	g.POST("/:tourId/reviews", r.CreateReview, protect, middleware.RestrictTo(model.RoleUser)) // tour taken from the path
}
