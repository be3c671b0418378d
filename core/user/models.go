package user

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"

	"github.com/mindzed/attendance/core"
)

// Role is the closed set of roles a User can hold.
type Role string

// Roles
const (
	RoleAdmin   Role = "ADMIN"
	RoleTeacher Role = "TEACHER"
	RoleStudent Role = "STUDENT"
)

var (
	AllRoles = []Role{RoleAdmin, RoleTeacher, RoleStudent}

	errInvalidRole = errors.New("invalid role")
)

// ParseRole returns the Role matching s (case-insensitive).
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToUpper(strings.TrimSpace(s)))
	if !r.IsValid() {
		return "", errInvalidRole
	}
	return r, nil
}

func (r Role) IsValid() bool {
	switch r {
	case RoleAdmin, RoleTeacher, RoleStudent:
		return true
	}
	return false
}

func (r Role) String() string { return string(r) }

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	Role         Role      `json:"role"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"created_at"` // UTC
	UpdatedAt    time.Time `json:"updated_at"` // UTC
	LastLogin    time.Time `json:"last_login"` // UTC
}

func (u *User) SetPassword(pwd string, cost int) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), cost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

// HasPassword reports whether the account has been activated with a password.
func (u *User) HasPassword() bool {
	return len(u.PasswordHash) > 0
}

func (u *User) IsAdmin() bool   { return u.Role == RoleAdmin }
func (u *User) IsTeacher() bool { return u.Role == RoleTeacher }
func (u *User) IsStudent() bool { return u.Role == RoleStudent }

func (u *User) Identity() Identity {
	return Identity{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}

// Identity is the minimal, session-borne description of an authenticated User.
type Identity struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

func (id Identity) IsZero() bool { return id.ID == "" }

type SystemStatus struct {
	IsFirstRun bool `json:"isFirstRun"`
}

// Credentials are submitted to log in.
type Credentials struct {
	Email    string `json:"email" form:"email" validate:"required"`
	Password string `json:"password" form:"password" validate:"required"`
}

func (c *Credentials) Clean() {
	c.Email = core.CleanString(c.Email, true /* lower */)
}

// NewAdmin contains information needed to bootstrap the first administrator.
type NewAdmin struct {
	Name     string `json:"name" form:"name" validate:"required,notblank"`
	Email    string `json:"email" form:"email" validate:"required,email"`
	Password string `json:"password" form:"password" validate:"required"`
}

func (na *NewAdmin) Validate(validate *validator.Validate) error {
	na.Name = core.CleanString(na.Name)
	na.Email = core.CleanString(na.Email, true /* lower */)

	if err := validate.Struct(na); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && core.HasTag(verrs, "required") {
			return core.NewValidationError(errAdminFieldsMissing)
		}
		return err
	}
	return nil
}

// NewUser contains information needed to create a new User of any role.
// An empty Password leaves the account not yet activated.
type NewUser struct {
	Name     string `json:"name" validate:"required,notblank"`
	Email    string `json:"email" validate:"required,email"`
	Role     Role   `json:"role" validate:"required,role"`
	Password string `json:"password"`
}

func (nu *NewUser) Validate(validate *validator.Validate) error {
	nu.Name = core.CleanString(nu.Name)
	nu.Email = core.CleanString(nu.Email, true /* lower */)
	return validate.Struct(nu)
}

// ChangePassword is submitted by an authenticated User to change their own password.
type ChangePassword struct {
	CurrentPassword string `json:"currentPassword" form:"currentPassword" validate:"required"`
	NewPassword     string `json:"newPassword" form:"newPassword" validate:"required"`
	ConfirmPassword string `json:"confirmPassword" form:"confirmPassword" validate:"required"`
}

// Validate applies, in order: required fields, confirmation match, minimum length.
func (cp ChangePassword) Validate(validate *validator.Validate, minLen int) error {
	if err := validate.Struct(cp); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok && core.HasTag(verrs, "required") {
			return core.NewValidationError(errAllFieldsRequired)
		}
		return err
	}
	if cp.NewPassword != cp.ConfirmPassword {
		return core.NewValidationError(errPasswordsMismatch)
	}
	if len(cp.NewPassword) < minLen {
		return core.NewValidationError(errors.Errorf("New password must be at least %d characters long.", minLen))
	}
	return nil
}

type QueryFilter struct {
	Roles    []Role
	Ordering []core.DBOrdering
}

type GetFilter struct {
	ID    string
	Email string
}
