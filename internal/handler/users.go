package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/tourbook/tours-api/internal/apperror"
	"github.com/tourbook/tours-api/internal/middleware"
	"github.com/tourbook/tours-api/internal/model"
	"github.com/tourbook/tours-api/internal/repository"
	"github.com/tourbook/tours-api/internal/service"
)

// mailTimeout bounds the forgot-password flow, which includes SMTP delivery.
const mailTimeout = 30 * time.Second

// UserHandler bundles dependencies for authentication and user endpoints.
type UserHandler struct {
	Auth         *service.AuthService
	Users        *repository.UserRepo
	CookieTTL    time.Duration
	SecureCookie bool // set in production so the cookie only travels over HTTPS
	MaxLimit     int
}

func NewUserHandler(auth *service.AuthService, users *repository.UserRepo, cookieTTL time.Duration, secure bool, maxLimit int) *UserHandler {
	return &UserHandler{Auth: auth, Users: users, CookieTTL: cookieTTL, SecureCookie: secure, MaxLimit: maxLimit}
}

// sendToken sets the jwt cookie and writes the token with its user.
func (h *UserHandler) sendToken(c echo.Context, code int, sess *service.Session) error {
	c.SetCookie(&http.Cookie{
		Name:     middleware.CookieName,       // read back by Protect when no bearer header is sent
		Value:    sess.Token.Token,            // the signed access token
		Path:     "/",                         // valid for every route
		Expires:  time.Now().Add(h.CookieTTL), // JWT_COOKIE_EXPIRES_IN days
		HttpOnly: true,                        // not readable from browser scripts
		Secure:   h.SecureCookie,              // HTTPS only in production
		SameSite: http.SameSiteLaxMode,        // not sent on cross-site subrequests
	})
	return c.JSON(code, echo.Map{
		"status": "success",
		"token":  sess.Token.Token,
		"data":   echo.Map{"user": sess.User}, // password is tagged json:"-"
	})
}

// currentUser returns the user resolved by Protect.
func currentUser(c echo.Context) (*model.User, error) {
	u, ok := service.UserFrom(c.Request().Context())
	if !ok {
		return nil, apperror.Unauthenticated("You are not logged in! Please log in to get access.")
	}
	return u, nil
}

// Signup handles POST /users/signup.
func (h *UserHandler) Signup(c echo.Context) error {
	var in model.SignupInput // a role in the body is not bound at all
	if err := bind(c, &in); err != nil { // malformed JSON
		return err
	}
	ctx, cancel := requestContext(c) // bound DB work to the handler timeout
	defer cancel()
	sess, err := h.Auth.Signup(ctx, in) // validates, hashes, inserts and announces
	if err != nil {
		return err // validation or duplicate email, rendered by the error handler
	}
	return h.sendToken(c, http.StatusCreated, sess) // log the new user in straight away
}

// Login handles POST /users/login.
func (h *UserHandler) Login(c echo.Context) error {
	var in model.LoginInput
	if err := bind(c, &in); err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	sess, err := h.Auth.Login(ctx, in) // 400 when a field is missing, 401 on bad credentials
	if err != nil {
		return err
	}
	return h.sendToken(c, http.StatusCreated, sess)
}

// Logout handles GET /users/logout by overwriting the cookie with a value
// that expires in ten seconds.
func (h *UserHandler) Logout(c echo.Context) error {
	c.SetCookie(&http.Cookie{
		Name:     middleware.CookieName,
		Value:    middleware.LoggedOutValue, // Protect treats this value as no token
		Path:     "/",
		Expires:  time.Now().Add(10 * time.Second), // let the browser drop it soon
		HttpOnly: true,
		Secure:   h.SecureCookie,
	})
	return c.JSON(http.StatusOK, echo.Map{"status": "success"})
}

// ForgotPassword handles POST /users/forgotPassword.
func (h *UserHandler) ForgotPassword(c echo.Context) error {
	var in struct { // only the address is read from the body
		Email string `json:"email"`
	}
	if err := bind(c, &in); err != nil {
		return err
	}
	baseURL := c.Scheme() + "://" + c.Request().Host // reset links point back at this host

	// SMTP delivery is slower than a query, so use the longer mail timeout.
	ctx, cancel := context.WithTimeout(c.Request().Context(), mailTimeout)
	defer cancel()
	if err := h.Auth.ForgotPassword(ctx, in.Email, baseURL); err != nil {
		return err // 404 for unknown email, 500 when the mail could not be sent
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "success", "message": "Token sent to email!"})
}

// ResetPassword handles PATCH /users/resetPassword/:token.
func (h *UserHandler) ResetPassword(c echo.Context) error {
	var in model.ResetPasswordInput
	if err := bind(c, &in); err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	sess, err := h.Auth.ResetPassword(ctx, c.Param("token"), in) // token is the plain value from the mail
	if err != nil {
		return err
	}
	return h.sendToken(c, http.StatusOK, sess)
}

// UpdatePassword handles PATCH /users/updatePassword.
func (h *UserHandler) UpdatePassword(c echo.Context) error {
	u, err := currentUser(c) // set by Protect
	if err != nil {
		return err
	}
	var in model.UpdatePasswordInput // current password plus the confirmed new one
	if err := bind(c, &in); err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	sess, err := h.Auth.UpdatePassword(ctx, u, in)
	if err != nil {
		return err
	}
	return h.sendToken(c, http.StatusOK, sess)
}

// GetMe handles GET /users/me.
func (h *UserHandler) GetMe(c echo.Context) error {
	u, err := currentUser(c)
	if err != nil {
		return err
	}
	return success(c, http.StatusOK, "user", u)
}

// UpdateMe handles PATCH /users/updateMe.
func (h *UserHandler) UpdateMe(c echo.Context) error {
	u, err := currentUser(c)
	if err != nil {
		return err
	}
	var in model.UpdateMeInput
	if err := bind(c, &in); err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	updated, err := h.Auth.UpdateMe(ctx, u, in)
	if err != nil {
		return err
	}
	return success(c, http.StatusOK, "user", updated)
}

// DeleteMe handles DELETE /users/deleteMe.
func (h *UserHandler) DeleteMe(c echo.Context) error {
	u, err := currentUser(c)
	if err != nil {
		return err
	}
	ctx, cancel := requestContext(c)
	defer cancel()
	if err := h.Auth.DeleteMe(ctx, u); err != nil {
		return err
	}
	return c.NoContent(http.StatusNoContent)
}

// GetAllUsers handles GET /users (admin).
func (h *UserHandler) GetAllUsers(c echo.Context) error {
	return GetAll[model.User](h.Users, "users", h.MaxLimit, nil)(c)
}

// GetUser handles GET /users/:id (admin).
func (h *UserHandler) GetUser(c echo.Context) error {
	return GetOne[model.User](h.Users, "user")(c)
}

// UpdateUser handles PATCH /users/:id (admin).  Passwords cannot be changed
// here because the password attribute is never read from JSON.
func (h *UserHandler) UpdateUser(c echo.Context) error {
	return UpdateOne[model.User](h.Users)(c)
}

// DeleteUser handles DELETE /users/:id (admin).
func (h *UserHandler) DeleteUser(c echo.Context) error {
	return DeleteOne(h.Users)(c)
}
