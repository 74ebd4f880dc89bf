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
	"github.com/tourbook/tours-api/internal/utils"
)

// secretScope hides secret tours from every read, update, delete and
// aggregation.
const secretScope = "secret_tour = FALSE"

func tourTable() Table[model.Tour] {
	col := func(name, column string, kind query.Kind, ref func(*model.Tour) any) Column[model.Tour] {
		return Column[model.Tour]{Field: query.Field{Name: name, Column: column, Kind: kind}, Ref: ref}
	}
	cols := []Column[model.Tour]{
		col("id", "id", query.KindString, func(t *model.Tour) any { return &t.ID }),
		col("name", "name", query.KindString, func(t *model.Tour) any { return &t.Name }),
		col("slug", "slug", query.KindString, func(t *model.Tour) any { return &t.Slug }),
		col("duration", "duration", query.KindNumber, func(t *model.Tour) any { return &t.Duration }),
		col("maxGroupSize", "max_group_size", query.KindNumber, func(t *model.Tour) any { return &t.MaxGroupSize }),
		col("difficulty", "difficulty", query.KindString, func(t *model.Tour) any { return &t.Difficulty }),
		col("ratingsAverage", "ratings_average", query.KindNumber, func(t *model.Tour) any { return &t.RatingsAverage }),
		col("ratingsQuantity", "ratings_quantity", query.KindNumber, func(t *model.Tour) any { return &t.RatingsQuantity }),
		col("price", "price", query.KindNumber, func(t *model.Tour) any { return &t.Price }),
		col("priceDiscount", "price_discount", query.KindNumber, func(t *model.Tour) any { return &t.PriceDiscount }),
		col("summary", "summary", query.KindString, func(t *model.Tour) any { return &t.Summary }),
		col("description", "description", query.KindString, func(t *model.Tour) any { return &t.Description }),
		col("imageCover", "image_cover", query.KindString, func(t *model.Tour) any { return &t.ImageCover }),
		col("images", "images", query.KindJSON, func(t *model.Tour) any { return &t.Images }),
		col("startDates", "start_dates", query.KindJSON, func(t *model.Tour) any { return &t.StartDates }),
		col("secretTour", "secret_tour", query.KindBool, func(t *model.Tour) any { return &t.SecretTour }),
		col("startLocation", "start_location", query.KindJSON, func(t *model.Tour) any { return &t.StartLocation }),
		col("locations", "locations", query.KindJSON, func(t *model.Tour) any { return &t.Locations }),
		col("createdAt", "created_at", query.KindTime, func(t *model.Tour) any { return &t.CreatedAt }),
		col("version", "version", query.KindNumber, func(t *model.Tour) any { return &t.Version }),
	}
	for i := range cols {
		switch cols[i].Name {
		case "createdAt":
			cols[i].Hidden, cols[i].ReadOnly = true, true
		case "version":
			cols[i].Hidden = true
		}
	}
	return Table[model.Tour]{
		Name:     "tours",
		Columns:  cols,
		Extra:    []query.Field{{Name: "guides"}},
		Scope:    []string{secretScope},
		Virtuals: map[string]string{"durationInWeeks": "duration"},
	}
}

// TourRepo encapsulates all database queries related to tours.
type TourRepo struct {
	*Store[model.Tour]
}

// NewTourRepo wires the tour table with its hooks: slug and defaults before
// save, guide rows after save, and guide population, virtual fields and
// timing on reads.
func NewTourRepo(db *sql.DB, log *zap.Logger) *TourRepo {
	r := &TourRepo{}
	r.Store = NewStore(db, tourTable(),
		WithDecorators(
			Timed[model.Tour](queryLogger(log)),
			Computed(func(t *model.Tour) { t.ComputeVirtuals() }),
			Populated(r.populateGuides),
		),
		WithBeforeSave(prepareTour),
		WithAfterSave(saveGuides),
	)
	return r
}

// prepareTour applies defaults, trims text and derives the slug.
func prepareTour(_ context.Context, t *model.Tour, isNew bool) error {
	t.Name = strings.TrimSpace(t.Name)
	t.Summary = strings.TrimSpace(t.Summary)
	t.Description = strings.TrimSpace(t.Description)
	t.Slug = utils.Slugify(t.Name)
	if t.RatingsAverage == 0 {
		t.RatingsAverage = model.DefaultRatingsAverage
	}
	if t.Images == nil {
		t.Images = model.StringList{}
	}
	if t.StartDates == nil {
		t.StartDates = model.TimeList{}
	}
	if t.Locations == nil {
		t.Locations = model.LocationList{}
	}
	if isNew {
		now := time.Now().UTC()
		v := 0
		t.CreatedAt, t.Version = &now, &v
		return nil
	}
	v := 1
	if t.Version != nil {
		v = *t.Version + 1
	}
	t.Version = &v
	return nil
}

// saveGuides replaces the tour's guide rows, preserving their order.  A nil
// Guides on an existing tour means the list was not part of the write and
// its rows are left alone; an empty list clears them.
func saveGuides(ctx context.Context, tx Execer, t *model.Tour, isNew bool) error {
	if !isNew {
		if t.Guides == nil {
			return nil
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM tour_guides WHERE tour_id = ?", t.ID); err != nil {
			return fmt.Errorf("clear guides: %w", err)
		}
	}
	if len(t.Guides) == 0 {
		return nil
	}
	args := make([]any, 0, len(t.Guides)*3)
	for i, g := range t.Guides {
		args = append(args, t.ID, g.ID, i)
	}
	stmt := "INSERT INTO tour_guides (tour_id, user_id, position) VALUES " +
		strings.TrimSuffix(strings.Repeat("(?, ?, ?), ", len(t.Guides)), ", ")
	if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
		return fmt.Errorf("save guides: %w", err)
	}
	return nil
}

// populateGuides replaces guide references with the active guide users they
// point to.  Users whose role is not guide or lead-guide are left out.
func (r *TourRepo) populateGuides(ctx context.Context, tours []*model.Tour, q *query.Query) error {
	if !q.Has("guides") {
		return nil
	}
	byID := make(map[string]*model.Tour, len(tours))
	args := make([]any, 0, len(tours)+2)
	for _, t := range tours {
		t.Guides = []model.Ref{}
		byID[t.ID] = t
		args = append(args, t.ID)
	}
	args = append(args, model.RoleGuide, model.RoleLeadGuide)
	stmt := `SELECT tg.tour_id, u.id, u.name, u.email, u.photo, u.role
		FROM tour_guides tg
		JOIN users u ON u.id = tg.user_id
		WHERE tg.tour_id IN (` + strings.TrimSuffix(strings.Repeat("?,", len(tours)), ",") + `)
		  AND u.active = TRUE AND u.role IN (?, ?)
		ORDER BY tg.tour_id, tg.position`
	rows, err := r.DB().QueryContext(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("populate guides: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var tourID string
		var g model.Ref
		if err := rows.Scan(&tourID, &g.ID, &g.Name, &g.Email, &g.Photo, &g.Role); err != nil {
			return fmt.Errorf("scan guide: %w", err)
		}
		if t := byID[tourID]; t != nil {
			t.Guides = append(t.Guides, g)
		}
	}
	return rows.Err()
}

// Stats aggregates visible tours rated 4.5 or better per difficulty,
// ordered by average price.
func (r *TourRepo) Stats(ctx context.Context) ([]model.TourStats, error) {
	const q = `SELECT difficulty, COUNT(*), COALESCE(SUM(ratings_quantity), 0),
			AVG(ratings_average), AVG(price), MIN(price), MAX(price)
		FROM tours
		WHERE ` + secretScope + ` AND ratings_average >= 4.5
		GROUP BY difficulty
		ORDER BY AVG(price) ASC`
	rows, err := r.DB().QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("tour stats: %w", err)
	}
	defer rows.Close()
	out := make([]model.TourStats, 0, 3)
	for rows.Next() {
		var s model.TourStats
		if err := rows.Scan(&s.Difficulty, &s.NumTours, &s.NumRatings, &s.AvgRating, &s.AvgPrice, &s.MinPrice, &s.MaxPrice); err != nil {
			return nil, fmt.Errorf("scan tour stats: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// DeleteAll removes every tour, secret ones included.  Guide and review
// rows go with them through ON DELETE CASCADE.
func (r *TourRepo) DeleteAll(ctx context.Context) (int64, error) {
	res, err := r.DB().ExecContext(ctx, "DELETE FROM tours")
	if err != nil {
		return 0, fmt.Errorf("delete tours: %w", err)
	}
	return res.RowsAffected()
}
