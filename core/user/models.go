package user

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/cetrack/core"
)

// Roles
const (
	RoleAdmin   = "ADMIN"
	RoleTeacher = "TEACHER"
)

// User is a staff account (teacher or admin).
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	DisplayName  string    `json:"displayName"`
	Role         string    `json:"role"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"-"`
	UpdatedAt    time.Time `json:"-"`
}

// NewUser contains information needed to create or update a User from the admin CLI.
type NewUser struct {
	Email       string `json:"email" validate:"required,email"`
	DisplayName string `json:"displayName" validate:"required,notblank"`
	Password    string `json:"password" validate:"required,min=6"`
	Role        string `json:"role" validate:"required,oneof=ADMIN TEACHER"`
}

func (nu *NewUser) Validate(validate *validator.Validate) error {
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	nu.DisplayName = core.CleanString(nu.DisplayName)
	if nu.Role == "" {
		nu.Role = RoleTeacher
	}
	return validate.Struct(nu)
}

type GetFilter struct {
	ID    string
	Email string
}
