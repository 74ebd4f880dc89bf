// Package queue carries domain events over RabbitMQ.
package queue

import "time"

// SignedUpQueue is the durable queue for UserSignedUpEvent.
const SignedUpQueue = "user.signed_up"

// UserSignedUpEvent is published after a successful signup.  It holds what
// the welcome mail needs so the consumer never reads the database.
type UserSignedUpEvent struct {
	UserID     string    `json:"user_id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	SignedUpAt time.Time `json:"signed_up_at"`
}
