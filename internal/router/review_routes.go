package router

import (
	"github.com/labstack/echo/v4"

	"github.com/tourbook/tours-api/internal/handler"
	"github.com/tourbook/tours-api/internal/middleware"
	"github.com/tourbook/tours-api/internal/model"
)

// RegisterReviews mounts /reviews.  Every route requires a logged-in user.
func RegisterReviews(v1 *echo.Group, r *handler.ReviewHandler, protect echo.MiddlewareFunc) {
	g := v1.Group("/reviews", protect)
	g.GET("", r.GetAllReviews)
	g.POST("", r.CreateReview, middleware.RestrictTo(model.RoleUser)) // only plain users write reviews
	g.GET("/:id", r.GetReview)

	// Admins moderate; guides never edit reviews.
	authors := middleware.RestrictTo(model.RoleUser, model.RoleAdmin)
	g.PATCH("/:id", r.UpdateReview, authors)
	g.DELETE("/:id", r.DeleteReview, authors)
}
