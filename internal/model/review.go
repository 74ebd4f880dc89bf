package model

import "time"

// DefaultRating is used when a review is created without a rating.
const DefaultRating = 4.5

// Review is feedback left on a tour by a user, stored in the `reviews`
// table.  User is populated with the author's name and photo on reads.
type Review struct {
	ID        string    `json:"id"`
	Review    string    `json:"review" validate:"required"`
	Rating    float64   `json:"rating" validate:"gte=1,lte=5"`
	CreatedAt time.Time `json:"createdAt"`
	Tour      string    `json:"tour" validate:"required,uuid"`
	User      Ref       `json:"user"`
}
