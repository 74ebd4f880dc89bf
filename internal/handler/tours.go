package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tourbook/tours-api/internal/apperror"
	"github.com/tourbook/tours-api/internal/model"
	"github.com/tourbook/tours-api/internal/repository"
)

// TourHandler bundles dependencies for tour endpoints.
type TourHandler struct {
	Tours    *repository.TourRepo
	Reviews  *repository.ReviewRepo
	MaxLimit int // upper bound for ?limit=
}

func NewTourHandler(tours *repository.TourRepo, reviews *repository.ReviewRepo, maxLimit int) *TourHandler {
	return &TourHandler{Tours: tours, Reviews: reviews, MaxLimit: maxLimit}
}

// AliasTopTours rewrites the query string to the five best rated, cheapest
// tours before the list handler runs.
func AliasTopTours(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		q := req.URL.Query()
		q.Set("limit", "5")
		q.Set("sort", "-ratingsAverage,price") // best rated first, cheapest breaks ties
		q.Set("fields", "name,price,ratingsAverage,summary,difficulty")
		req.URL.RawQuery = q.Encode() // GetAll reads the raw URL, not echo's cached params
		c.SetRequest(req)
		return next(c)
	}
}

// GetAllTours handles GET /api/v1/tours.
func (h *TourHandler) GetAllTours(c echo.Context) error {
	return GetAll[model.Tour](h.Tours, "tours", h.MaxLimit, nil)(c)
}

// GetTour handles GET /api/v1/tours/:id and embeds the tour's reviews.
func (h *TourHandler) GetTour(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()

	tour, err := h.Tours.Get(ctx, c.Param("id")) // guides are populated by the repo
	if errors.Is(err, repository.ErrNotFound) {
		return apperror.NotFound("No tour found with that ID") // also hides secret tours
	}
	if err != nil {
		return err
	}
	// Reviews are only attached on single-tour reads.
	if tour.Reviews, err = h.Reviews.ForTour(ctx, tour.ID); err != nil {
		return err
	}
	return success(c, http.StatusOK, "tour", tour)
}

// CreateTour handles POST /api/v1/tours.
func (h *TourHandler) CreateTour(c echo.Context) error {
	var tour model.Tour
	if err := bind(c, &tour); err != nil {
		return err
	}
	// Identity, bookkeeping and computed attributes are never client input.
	tour.ID, tour.CreatedAt, tour.Version, tour.Reviews = "", nil, nil, nil

	ctx, cancel := requestContext(c)
	defer cancel()
	if err := h.Tours.Insert(ctx, &tour); err != nil {
		return err // validation errors become 400 in the error handler
	}
	tour.ComputeVirtuals() // durationInWeeks for the response
	return success(c, http.StatusCreated, "tour", tour)
}

// UpdateTour handles PATCH /api/v1/tours/:id.
func (h *TourHandler) UpdateTour(c echo.Context) error {
	return UpdateOne[model.Tour](h.Tours)(c)
}

// DeleteTour handles DELETE /api/v1/tours/:id.
func (h *TourHandler) DeleteTour(c echo.Context) error {
	return DeleteOne(h.Tours)(c)
}

// GetTourStats handles GET /api/v1/tours/tour-stats.
func (h *TourHandler) GetTourStats(c echo.Context) error {
	ctx, cancel := requestContext(c)
	defer cancel()
	stats, err := h.Tours.Stats(ctx)
	if err != nil {
		return err
	}
	return success(c, http.StatusOK, "stats", stats)
}
