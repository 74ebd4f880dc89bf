package router

import (
	"github.com/labstack/echo/v4"

	"github.com/tourbook/tours-api/internal/handler"
	"github.com/tourbook/tours-api/internal/middleware"
	"github.com/tourbook/tours-api/internal/model"
)

// RegisterUsers mounts /users: the public auth flows, the self-service
// routes behind Protect and the admin-only user management.
func RegisterUsers(v1 *echo.Group, u *handler.UserHandler, protect echo.MiddlewareFunc) {
	g := v1.Group("/users")

	// ---- Auth ----
	g.POST("/signup", u.Signup)
	g.POST("/login", u.Login)
	g.GET("/logout", u.Logout)                        // overwrites the jwt cookie
	g.POST("/forgotPassword", u.ForgotPassword)       // mails a reset link
	g.PATCH("/resetPassword/:token", u.ResetPassword) // token is the plain value from the mail

	// ---- Current user ----
	g.PATCH("/updatePassword", u.UpdatePassword, protect)
	g.GET("/me", u.GetMe, protect) // the session user loaded by Protect
	g.PATCH("/updateMe", u.UpdateMe, protect)
	g.DELETE("/deleteMe", u.DeleteMe, protect) // deactivates, answers 204

	// ---- Admin ----
	admin := middleware.RestrictTo(model.RoleAdmin)
	g.GET("", u.GetAllUsers, protect, admin)
	g.GET("/:id", u.GetUser, protect, admin)
	g.PATCH("/:id", u.UpdateUser, protect, admin)
	g.DELETE("/:id", u.DeleteUser, protect, admin)
}
