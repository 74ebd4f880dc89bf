package model

import "time"

// Difficulty levels accepted for a tour.
const (
	DifficultyEasy      = "easy"
	DifficultyMedium    = "medium"
	DifficultyDifficult = "difficult"
)

// DefaultRatingsAverage is the rating a tour starts with.
const DefaultRatingsAverage = 4.5

// Tour is a bookable product stored in the `tours` table.  Guides live in
// the `tour_guides` join table and Reviews are looked up through
// reviews.tour_id; neither is a column on the row itself.
//
// CreatedAt and Version are pointers because they are only loaded when a
// caller selects them explicitly.
type Tour struct {
	ID              string       `json:"id"`
	Name            string       `json:"name" validate:"required,min=10,max=40"`
	Slug            string       `json:"slug"`
	Duration        int          `json:"duration" validate:"required,gt=0"`
	MaxGroupSize    int          `json:"maxGroupSize" validate:"required,gt=0"`
	Difficulty      string       `json:"difficulty" validate:"required,oneof=easy medium difficult"`
	RatingsAverage  float64      `json:"ratingsAverage" validate:"gte=1,lte=5"`
	RatingsQuantity int          `json:"ratingsQuantity" validate:"gte=0"`
	Price           float64      `json:"price" validate:"required,gt=0"`
	PriceDiscount   *float64     `json:"priceDiscount,omitempty"`
	Summary         string       `json:"summary" validate:"required"`
	Description     string       `json:"description,omitempty"`
	ImageCover      string       `json:"imageCover" validate:"required"`
	Images          StringList   `json:"images"`
	CreatedAt       *time.Time   `json:"createdAt,omitempty"`
	StartDates      TimeList     `json:"startDates"`
	SecretTour      bool         `json:"secretTour"`
	StartLocation   *Location    `json:"startLocation,omitempty"`
	Locations       LocationList `json:"locations" validate:"dive"`
	Guides          []Ref        `json:"guides" validate:"dive"`
	Version         *int         `json:"version,omitempty"`

	DurationWeeks float64   `json:"durationInWeeks"`
	Reviews       []*Review `json:"reviews,omitempty"`
}

// GuideIDs returns the ids of the referenced guides.
func (t *Tour) GuideIDs() []string {
	ids := make([]string, 0, len(t.Guides))
	for _, g := range t.Guides {
		ids = append(ids, g.ID)
	}
	return ids
}

// ComputeVirtuals fills derived attributes that are never persisted.
func (t *Tour) ComputeVirtuals() {
	t.DurationWeeks = float64(t.Duration) / 7
}

// TourStats is one row of the per-difficulty aggregation.
type TourStats struct {
	Difficulty string  `json:"difficulty"`
	NumTours   int     `json:"numTours"`
	NumRatings int     `json:"numRatings"`
	AvgRating  float64 `json:"avgRating"`
	AvgPrice   float64 `json:"avgPrice"`
	MinPrice   float64 `json:"minPrice"`
	MaxPrice   float64 `json:"maxPrice"`
}
