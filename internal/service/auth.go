// Package service holds the authentication workflows that sit between the
// HTTP handlers and the user repository.
package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tourbook/tours-api/internal/apperror"
	"github.com/tourbook/tours-api/internal/mailer"
	"github.com/tourbook/tours-api/internal/model"
	"github.com/tourbook/tours-api/internal/queue"
	"github.com/tourbook/tours-api/internal/repository"
	"github.com/tourbook/tours-api/internal/utils"
)

// ResetPath is the route prefix embedded in password reset links.
const ResetPath = "/api/v1/users/resetPassword/"

// UserStore is the part of the user repository the auth flows need.
type UserStore interface {
	Insert(ctx context.Context, u *model.User) error
	Save(ctx context.Context, u *model.User) error
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	FindByResetToken(ctx context.Context, hash string, now time.Time) (*model.User, error)
	Deactivate(ctx context.Context, id string) error
}

// EventPublisher announces new accounts.
type EventPublisher interface {
	PublishUserSignedUp(ctx context.Context, ev queue.UserSignedUpEvent) error
}

// Session is a freshly issued access token together with its user.
type Session struct {
	Token utils.AccessToken
	User  *model.User
}

// AuthService implements signup, login, token verification and password
// management.
type AuthService struct {
	users  UserStore
	mail   mailer.Sender
	events EventPublisher // nil disables signup events
	secret string
	ttl    time.Duration
	log    *zap.Logger
	now    func() time.Time
}

// NewAuthService wires the auth flows.  events may be nil.
func NewAuthService(users UserStore, mail mailer.Sender, events EventPublisher, secret string, ttl time.Duration, log *zap.Logger) *AuthService {
	return &AuthService{
		users:  users,
		mail:   mail,
		events: events,
		secret: secret,
		ttl:    ttl,
		log:    log,
		now:    time.Now,
	}
}

func (s *AuthService) issue(u *model.User) (*Session, error) {
	tok, err := utils.IssueAccessToken(u.ID, u.Name, s.secret, s.ttl)
	if err != nil {
		return nil, apperror.Internal("could not issue token", err)
	}
	return &Session{Token: tok, User: u}, nil
}

// Signup creates a plain user account and logs it in.  The role is always
// "user" regardless of input.
func (s *AuthService) Signup(ctx context.Context, in model.SignupInput) (*Session, error) {
	if err := model.Validate(in); err != nil {
		return nil, err
	}
	u := &model.User{Name: in.Name, Email: in.Email, Role: model.RoleUser}
	u.SetPassword(in.Password)
	if err := s.users.Insert(ctx, u); err != nil {
		return nil, err
	}
	s.announce(u)
	return s.issue(u)
}

// announce publishes the signup event in the background.  Failures are
// logged only.
func (s *AuthService) announce(u *model.User) {
	if s.events == nil {
		return
	}
	ev := queue.UserSignedUpEvent{UserID: u.ID, Name: u.Name, Email: u.Email, SignedUpAt: s.now().UTC()}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.events.PublishUserSignedUp(ctx, ev); err != nil {
			s.log.Warn("signup event not published", zap.String("user_id", ev.UserID), zap.Error(err))
		}
	}()
}

// Login verifies credentials.  Unknown email and wrong password produce the
// same error.
func (s *AuthService) Login(ctx context.Context, in model.LoginInput) (*Session, error) {
	if strings.TrimSpace(in.Email) == "" || in.Password == "" {
		return nil, apperror.BadRequest("Please provide email and password!")
	}
	u, err := s.users.FindByEmail(ctx, in.Email)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperror.Unauthenticated("Incorrect email or password")
	}
	if err != nil {
		return nil, err
	}
	if !utils.VerifyPassword(u.Password, in.Password) {
		return nil, apperror.Unauthenticated("Incorrect email or password")
	}
	return s.issue(u)
}

// Authenticate resolves the user behind a raw access token.  Token errors
// are returned as utils.ErrInvalidToken or utils.ErrExpiredToken.
func (s *AuthService) Authenticate(ctx context.Context, raw string) (*model.User, error) {
	if raw == "" {
		return nil, apperror.Unauthenticated("You are not logged in! Please log in to get access.")
	}
	claims, err := utils.VerifyAccessToken(raw, s.secret)
	if err != nil {
		return nil, err
	}
	u, err := s.users.FindByID(ctx, claims.UserID)
	if errors.Is(err, repository.ErrNotFound) || apperror.IsKind(err, apperror.KindCast) {
		return nil, apperror.Unauthenticated("The user belonging to this token no longer exists.")
	}
	if err != nil {
		return nil, err
	}
	if claims.IssuedAt != nil && u.ChangedPasswordAfter(claims.IssuedAt.Time) {
		return nil, apperror.Unauthenticated("User recently changed password! Please log in again.")
	}
	return u, nil
}

// ForgotPassword stores a hashed reset token and mails the plain one as a
// link under baseURL.  When delivery fails the token is withdrawn.
func (s *AuthService) ForgotPassword(ctx context.Context, email, baseURL string) error {
	if strings.TrimSpace(email) == "" {
		return apperror.BadRequest("Please provide your email address.")
	}
	u, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return apperror.NotFound("There is no user with that email address.")
	}
	if err != nil {
		return err
	}
	tok, err := utils.NewResetToken()
	if err != nil {
		return apperror.Internal("could not create reset token", err)
	}
	u.PasswordResetToken = &tok.Hash
	u.PasswordResetExpires = &tok.Expires
	if err := s.users.Save(ctx, u); err != nil {
		return err
	}

	resetURL := strings.TrimSuffix(baseURL, "/") + ResetPath + tok.Plain
	if err := s.mail.Send(ctx, mailer.PasswordReset(u.Email, resetURL)); err != nil {
		u.ClearPasswordReset()
		if serr := s.users.Save(context.WithoutCancel(ctx), u); serr != nil {
			s.log.Error("reset token rollback failed", zap.String("user_id", u.ID), zap.Error(serr))
		}
		return apperror.Internal("There was an error sending the email. Try again later!", err)
	}
	return nil
}

// ResetPassword sets a new password for the holder of a valid reset token
// and logs them in.
func (s *AuthService) ResetPassword(ctx context.Context, token string, in model.ResetPasswordInput) (*Session, error) {
	u, err := s.users.FindByResetToken(ctx, utils.HashResetToken(token), s.now())
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperror.BadRequest("Token is invalid or has expired")
	}
	if err != nil {
		return nil, err
	}
	if err := model.Validate(in); err != nil {
		return nil, err
	}
	u.SetPassword(in.Password)
	u.ClearPasswordReset()
	if err := s.users.Save(ctx, u); err != nil {
		return nil, err
	}
	return s.issue(u)
}

// UpdatePassword replaces the password of a logged-in user after checking
// the current one.
func (s *AuthService) UpdatePassword(ctx context.Context, current *model.User, in model.UpdatePasswordInput) (*Session, error) {
	u, err := s.users.FindByID(ctx, current.ID)
	if err != nil {
		return nil, err
	}
	if in.CurrentPassword == "" {
		return nil, apperror.Unauthenticated("Please provide your current password.")
	}
	if !utils.VerifyPassword(u.Password, in.CurrentPassword) {
		return nil, apperror.Unauthenticated("Your current password is wrong.")
	}
	if err := model.Validate(in); err != nil {
		return nil, err
	}
	u.SetPassword(in.NewPassword)
	if err := s.users.Save(ctx, u); err != nil {
		return nil, err
	}
	return s.issue(u)
}

// UpdateMe changes the profile fields of a logged-in user.  Password
// changes go through UpdatePassword.
func (s *AuthService) UpdateMe(ctx context.Context, current *model.User, in model.UpdateMeInput) (*model.User, error) {
	if in.Password != "" || in.PasswordConfirm != "" {
		return nil, apperror.BadRequest("This route is not for password updates. Please use /updatePassword.")
	}
	if err := model.Validate(in); err != nil {
		return nil, err
	}
	u, err := s.users.FindByID(ctx, current.ID)
	if err != nil {
		return nil, err
	}
	if in.Name != nil {
		u.Name = *in.Name
	}
	if in.Email != nil {
		u.Email = *in.Email
	}
	if in.Photo != nil {
		u.Photo = *in.Photo
	}
	if err := s.users.Save(ctx, u); err != nil {
		return nil, err
	}
	return u, nil
}

// DeleteMe deactivates the account of a logged-in user.
func (s *AuthService) DeleteMe(ctx context.Context, current *model.User) error {
	return s.users.Deactivate(ctx, current.ID)
}
