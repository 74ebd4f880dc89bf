package model

// SignupInput is the body accepted by POST /users/signup.  Role is not part
// of the input: every new account starts as a plain user.
type SignupInput struct {
	Name            string `json:"name" validate:"required"`
	Email           string `json:"email" validate:"required,email"`
	Password        string `json:"password" validate:"required,min=8"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required,eqfield=Password"`
}

// LoginInput is the body accepted by POST /users/login.
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ResetPasswordInput is the body accepted by PATCH /users/resetPassword/:token.
type ResetPasswordInput struct {
	Password        string `json:"password" validate:"required,min=8"`
	PasswordConfirm string `json:"passwordConfirm" validate:"required,eqfield=Password"`
}

// UpdatePasswordInput is the body accepted by PATCH /users/updatePassword.
type UpdatePasswordInput struct {
	CurrentPassword    string `json:"currentPassword"`
	NewPassword        string `json:"newPassword" validate:"required,min=8"`
	NewPasswordConfirm string `json:"newPasswordConfirm" validate:"required,eqfield=NewPassword"`
}

// UpdateMeInput is the body accepted by PATCH /users/updateMe.
type UpdateMeInput struct {
	Name  *string `json:"name"`
	Email *string `json:"email" validate:"omitempty,email"`
	Photo *string `json:"photo"`

	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}
