package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tourbook/tours-api/internal/apperror"
	"github.com/tourbook/tours-api/internal/model"
	"github.com/tourbook/tours-api/internal/query"
	"github.com/tourbook/tours-api/internal/repository"
	"github.com/tourbook/tours-api/internal/service"
)

// ReviewHandler bundles dependencies for review endpoints.  All routes are
// mounted both at /api/v1/reviews and nested under /api/v1/tours/:tourId.
type ReviewHandler struct {
	Reviews  *repository.ReviewRepo
	MaxLimit int
}

func NewReviewHandler(reviews *repository.ReviewRepo, maxLimit int) *ReviewHandler {
	return &ReviewHandler{Reviews: reviews, MaxLimit: maxLimit}
}

// byTour restricts the list to the tour in the path, when there is one.
func byTour(c echo.Context, q *query.Query) error {
	if c.Param("tourId") == "" {
		return nil
	}
	id, err := pathID(c, "tourId")
	if err != nil {
		return err
	}
	q.Where("tour_id = ?", id)
	return nil
}

// GetAllReviews handles GET /reviews and GET /tours/:tourId/reviews.
func (h *ReviewHandler) GetAllReviews(c echo.Context) error {
	return GetAll[model.Review](h.Reviews, "reviews", h.MaxLimit, byTour)(c)
}

// CreateReview handles POST /reviews and POST /tours/:tourId/reviews.  The
// tour defaults to the path parameter and the author to the logged-in
// user.
func (h *ReviewHandler) CreateReview(c echo.Context) error {
	var review model.Review
	if err := bind(c, &review); err != nil {
		return err
	}
	review.ID = "" // ids are assigned on insert

	// Nested route: fill the tour from the path unless the body names one.
	if review.Tour == "" && c.Param("tourId") != "" {
		id, err := pathID(c, "tourId")
		if err != nil {
			return err
		}
		review.Tour = id
	}
	if review.User.ID == "" {
		u, ok := service.UserFrom(c.Request().Context()) // set by Protect
		if !ok {
			return apperror.Unauthenticated("You are not logged in! Please log in to get access.")
		}
		review.User = model.Ref{ID: u.ID}
	}

	ctx, cancel := requestContext(c)
	defer cancel()
	if err := h.Reviews.Insert(ctx, &review); err != nil {
		return err // duplicate (tour, user) maps to 400
	}
	return success(c, http.StatusCreated, "review", review)
}

// GetReview handles GET /reviews/:id.
func (h *ReviewHandler) GetReview(c echo.Context) error {
	return GetOne[model.Review](h.Reviews, "review")(c)
}

// UpdateReview handles PATCH /reviews/:id.
func (h *ReviewHandler) UpdateReview(c echo.Context) error {
	return UpdateOne[model.Review](h.Reviews)(c)
}

// DeleteReview handles DELETE /reviews/:id.
func (h *ReviewHandler) DeleteReview(c echo.Context) error {
	return DeleteOne(h.Reviews)(c)
}
