package handler

import (
	"context"
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/tourbook/tours-api/internal/apperror"
	"github.com/tourbook/tours-api/internal/query"
	"github.com/tourbook/tours-api/internal/repository"
)

// Finder lists documents.
type Finder[T any] interface {
	Query() *query.Query
	Find(ctx context.Context, q *query.Query) ([]*T, error)
}

// Getter loads one document by id.
type Getter[T any] interface {
	Get(ctx context.Context, id string) (*T, error)
}

// Updater patches one document by id.
type Updater[T any] interface {
	UpdateOne(ctx context.Context, id string, patch map[string]any) (*T, error)
}

// Deleter removes one document by id.
type Deleter interface {
	DeleteOne(ctx context.Context, id string) error
}

// Narrow adds request specific conditions to a list query, e.g. the parent
// id of a nested route.
type Narrow func(c echo.Context, q *query.Query) error

// GetAll lists documents filtered, sorted, projected and paginated from the
// query string.  key names the list inside the data envelope.
func GetAll[T any](store Finder[T], key string, maxLimit int, narrow Narrow) echo.HandlerFunc {
	return func(c echo.Context) error {
		q := store.Query()
		if narrow != nil {
			if err := narrow(c, q); err != nil {
				return err
			}
		}
		// Read the raw query so aliases that rewrite the URL are honored.
		q, err := query.NewFeatures(q, c.Request().URL.Query(), maxLimit).
			Filter().
			Sort().
			LimitFields().
			Paginate().
			All()
		if err != nil {
			return err
		}

		ctx, cancel := requestContext(c)
		defer cancel()
		docs, err := store.Find(ctx, q)
		if err != nil {
			return err
		}

		var items any = docs
		// Projection: drop every field the ?fields= list did not ask for.
		if keep := q.Keep(); keep != nil {
			if items, err = query.Pick(docs, keep); err != nil {
				return err
			}
		}
		return c.JSON(http.StatusOK, echo.Map{
			"status":  "success",
			"results": len(docs),
			"data":    echo.Map{key: items},
		})
	}
}

// GetOne returns the document named by the :id path parameter.
func GetOne[T any](store Getter[T], key string) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := requestContext(c)
		defer cancel()
		doc, err := store.Get(ctx, c.Param("id"))
		if errors.Is(err, repository.ErrNotFound) {
			return apperror.NotFound("No document found with that ID")
		}
		if err != nil {
			return err
		}
		return success(c, http.StatusOK, key, doc)
	}
}

// UpdateOne applies the JSON body as a partial update to the document named
// by :id and returns the updated document.
func UpdateOne[T any](store Updater[T]) echo.HandlerFunc {
	return func(c echo.Context) error {
		var patch map[string]any // only the keys present in the body are applied
		if err := bind(c, &patch); err != nil {
			return err
		}
		ctx, cancel := requestContext(c)
		defer cancel()
		doc, err := store.UpdateOne(ctx, c.Param("id"), patch)
		if errors.Is(err, repository.ErrNotFound) {
			return apperror.NotFound("No document found with that ID")
		}
		if err != nil {
			return err
		}
		return success(c, http.StatusOK, "data", doc)
	}
}

// DeleteOne removes the document named by :id and answers 204.
func DeleteOne(store Deleter) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := requestContext(c)
		defer cancel()
		err := store.DeleteOne(ctx, c.Param("id"))
		if errors.Is(err, repository.ErrNotFound) {
			return apperror.NotFound("No document found with that ID")
		}
		if err != nil {
			return err
		}
		return c.NoContent(http.StatusNoContent)
	}
}
