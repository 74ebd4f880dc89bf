package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tourbook/tours-api/internal/model"
	"github.com/tourbook/tours-api/internal/query"
)

func reviewTable() Table[model.Review] {
	return Table[model.Review]{
		Name: "reviews",
		Columns: []Column[model.Review]{
			{Field: query.Field{Name: "id", Column: "id", Kind: query.KindString}, Ref: func(r *model.Review) any { return &r.ID }},
			{Field: query.Field{Name: "review", Column: "review", Kind: query.KindString}, Ref: func(r *model.Review) any { return &r.Review }},
			{Field: query.Field{Name: "rating", Column: "rating", Kind: query.KindNumber}, Ref: func(r *model.Review) any { return &r.Rating }},
			{Field: query.Field{Name: "createdAt", Column: "created_at", Kind: query.KindTime}, Ref: func(r *model.Review) any { return &r.CreatedAt }, ReadOnly: true},
			{Field: query.Field{Name: "tour", Column: "tour_id", Kind: query.KindString}, Ref: func(r *model.Review) any { return &r.Tour }},
			{Field: query.Field{Name: "user", Column: "user_id", Kind: query.KindString}, Ref: func(r *model.Review) any { return &r.User.ID }},
		},
	}
}

// ReviewRepo provides access to the reviews table.
type ReviewRepo struct {
	*Store[model.Review]
}

// NewReviewRepo returns a ReviewRepo whose reads attach the author's name
// and photo.
func NewReviewRepo(db *sql.DB, log *zap.Logger) *ReviewRepo {
	r := &ReviewRepo{}
	r.Store = NewStore(db, reviewTable(),
		WithDecorators(
			Timed[model.Review](queryLogger(log)),
			Populated(r.populateAuthors),
		),
		WithBeforeSave(prepareReview),
	)
	return r
}

func prepareReview(_ context.Context, r *model.Review, isNew bool) error {
	r.Review = strings.TrimSpace(r.Review)
	if r.Rating == 0 {
		r.Rating = model.DefaultRating
	}
	if isNew {
		r.CreatedAt = time.Now().UTC()
	}
	// Only the id is stored; populated fields are dropped before validation.
	r.User = model.Ref{ID: r.User.ID}
	return nil
}

// ForTour returns every review of a tour, newest first.
func (r *ReviewRepo) ForTour(ctx context.Context, tourID string) ([]*model.Review, error) {
	q := r.Query().Where("tour_id = ?", tourID)
	_ = q.OrderBy("createdAt", true)
	return r.Find(ctx, q)
}

// populateAuthors fills name and photo of active authors.
func (r *ReviewRepo) populateAuthors(ctx context.Context, reviews []*model.Review, q *query.Query) error {
	if !q.Has("user") {
		return nil
	}
	ids := make([]any, 0, len(reviews))
	seen := make(map[string]bool, len(reviews))
	for _, rv := range reviews {
		if !seen[rv.User.ID] {
			seen[rv.User.ID] = true
			ids = append(ids, rv.User.ID)
		}
	}
	stmt := "SELECT id, name, photo FROM users WHERE active = TRUE AND id IN (" +
		strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",") + ")"
	rows, err := r.DB().QueryContext(ctx, stmt, ids...)
	if err != nil {
		return fmt.Errorf("populate authors: %w", err)
	}
	defer rows.Close()
	authors := make(map[string]model.Ref, len(ids))
	for rows.Next() {
		var a model.Ref
		if err := rows.Scan(&a.ID, &a.Name, &a.Photo); err != nil {
			return fmt.Errorf("scan author: %w", err)
		}
		authors[a.ID] = a
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for _, rv := range reviews {
		if a, ok := authors[rv.User.ID]; ok {
			rv.User = a
		}
	}
	return nil
}
