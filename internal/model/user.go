package model

import "time"

// Roles a user can hold.  Everything that is not listed here is rejected by
// validation.
const (
	RoleUser      = "user"
	RoleGuide     = "guide"
	RoleLeadGuide = "lead-guide"
	RoleAdmin     = "admin"
)

// DefaultPhoto is assigned to users that never uploaded a picture.
const DefaultPhoto = "default.jpg"

// User represents an application user record as stored in the `users`
// table.  Credential fields never leave the process: Password holds the
// bcrypt hash and, like the reset fields, is excluded from JSON.
type User struct {
	ID                   string     `json:"id"`
	Name                 string     `json:"name" validate:"required"`
	Email                string     `json:"email" validate:"required,email"`
	Photo                string     `json:"photo"`
	Role                 string     `json:"role" validate:"required,oneof=user guide lead-guide admin"`
	Password             string     `json:"-" validate:"required"`
	PasswordChangedAt    *time.Time `json:"-"`
	PasswordResetToken   *string    `json:"-"`
	PasswordResetExpires *time.Time `json:"-"`
	Active               bool       `json:"-"`
	CreatedAt            time.Time  `json:"createdAt"`

	// plainPassword is set when the password was replaced in memory and
	// still needs hashing before the next write.
	plainPassword string
}

// SetPassword stages a new plain-text password.  The repository hashes it
// and stamps PasswordChangedAt before the row is written.
func (u *User) SetPassword(plain string) {
	u.plainPassword = plain
	u.Password = plain
}

// PendingPassword returns the staged plain-text password, if any.
func (u *User) PendingPassword() (string, bool) {
	return u.plainPassword, u.plainPassword != ""
}

// ClearPendingPassword forgets the staged password once it has been hashed.
func (u *User) ClearPendingPassword() { u.plainPassword = "" }

// ChangedPasswordAfter reports whether the password was changed after the
// given token issue time.  Only whole seconds are compared, matching the
// resolution of the iat claim.
func (u *User) ChangedPasswordAfter(issuedAt time.Time) bool {
	if u.PasswordChangedAt == nil {
		return false
	}
	return issuedAt.Unix() < u.PasswordChangedAt.Unix()
}

// ClearPasswordReset drops any outstanding reset token.
func (u *User) ClearPasswordReset() {
	u.PasswordResetToken = nil
	u.PasswordResetExpires = nil
}

// HasRole reports whether the user holds one of roles.
func (u *User) HasRole(roles ...string) bool {
	for _, r := range roles {
		if u.Role == r {
			return true
		}
	}
	return false
}

// Ref is a reference to another document.  On input it may be given as a
// bare id string; on output it carries whatever fields were populated.
type Ref struct {
	ID    string `json:"id" validate:"required,uuid"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Photo string `json:"photo,omitempty"`
	Role  string `json:"role,omitempty"`
}
