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

// activeScope keeps deactivated accounts out of every lookup.
const activeScope = "active = TRUE"

func userTable() Table[model.User] {
	field := func(name, column string, kind query.Kind, hidden bool) query.Field {
		return query.Field{Name: name, Column: column, Kind: kind, Hidden: hidden}
	}
	return Table[model.User]{
		Name: "users",
		Columns: []Column[model.User]{
			{Field: field("id", "id", query.KindString, false), Ref: func(u *model.User) any { return &u.ID }},
			{Field: field("name", "name", query.KindString, false), Ref: func(u *model.User) any { return &u.Name }},
			{Field: field("email", "email", query.KindString, false), Ref: func(u *model.User) any { return &u.Email }},
			{Field: field("photo", "photo", query.KindString, false), Ref: func(u *model.User) any { return &u.Photo }},
			{Field: field("role", "role", query.KindString, false), Ref: func(u *model.User) any { return &u.Role }},
			{Field: field("password", "password", query.KindString, true), Ref: func(u *model.User) any { return &u.Password }},
			{Field: field("passwordChangedAt", "password_changed_at", query.KindTime, true), Ref: func(u *model.User) any { return &u.PasswordChangedAt }},
			{Field: field("passwordResetToken", "password_reset_token", query.KindString, true), Ref: func(u *model.User) any { return &u.PasswordResetToken }},
			{Field: field("passwordResetExpires", "password_reset_expires", query.KindTime, true), Ref: func(u *model.User) any { return &u.PasswordResetExpires }},
			{Field: field("active", "active", query.KindBool, true), Ref: func(u *model.User) any { return &u.Active }},
			{Field: field("createdAt", "created_at", query.KindTime, false), Ref: func(u *model.User) any { return &u.CreatedAt }, ReadOnly: true},
		},
		Scope: []string{activeScope},
	}
}

// UserRepo encapsulates all database queries related to users.
type UserRepo struct {
	*Store[model.User]
	cost int
}

// NewUserRepo returns a UserRepo that hashes staged passwords with the
// given bcrypt cost.
func NewUserRepo(db *sql.DB, log *zap.Logger, bcryptCost int) *UserRepo {
	r := &UserRepo{cost: bcryptCost}
	r.Store = NewStore(db, userTable(),
		WithDecorators(Timed[model.User](queryLogger(log))),
		WithBeforeSave(r.prepareUser),
	)
	return r
}

// prepareUser normalizes the record and hashes a staged password.  A
// password replaced on an existing account moves passwordChangedAt one
// second into the past so the token issued right after still verifies.
func (r *UserRepo) prepareUser(_ context.Context, u *model.User, isNew bool) error {
	u.Name = strings.TrimSpace(u.Name)
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if u.Photo == "" {
		u.Photo = model.DefaultPhoto
	}
	if u.Role == "" {
		u.Role = model.RoleUser
	}
	if isNew {
		u.Active = true
		u.CreatedAt = time.Now().UTC()
	}
	plain, ok := u.PendingPassword()
	if !ok {
		return nil
	}
	hash, err := utils.HashPassword(plain, r.cost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	u.Password = hash
	u.ClearPendingPassword()
	if !isNew {
		changed := time.Now().UTC().Add(-time.Second)
		u.PasswordChangedAt = &changed
	}
	return nil
}

// FindByEmail loads an active user including credential fields.
func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	q := r.fullQuery().Where("email = ?", strings.ToLower(strings.TrimSpace(email)))
	return r.FindOne(ctx, q)
}

// FindByResetToken loads the user holding the hashed reset token when it
// has not expired at now.
func (r *UserRepo) FindByResetToken(ctx context.Context, hash string, now time.Time) (*model.User, error) {
	q := r.fullQuery().Where("password_reset_token = ? AND password_reset_expires > ?", hash, now.UTC())
	return r.FindOne(ctx, q)
}

// Deactivate soft deletes the account.  The row stays but drops out of
// every scoped read.
func (r *UserRepo) Deactivate(ctx context.Context, id string) error {
	if err := checkID(id); err != nil {
		return err
	}
	res, err := r.DB().ExecContext(ctx, "UPDATE users SET active = FALSE WHERE id = ? AND "+activeScope, id)
	if err != nil {
		return fmt.Errorf("deactivate user: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deactivate user: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
