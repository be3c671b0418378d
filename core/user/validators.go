package user

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/mindzed/attendance/core"
)

var (
	roleTag  = "role"
	roleText = "role must be one of ADMIN, TEACHER or STUDENT"
)

// InitValidators registers the user validators. core.InitValidators must be called first.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(roleTag, roleValidation)
	core.RegisterCustomTranslation(validate, translator, roleTag, roleText)
}

// roleValidation checks that the field holds one of AllRoles
func roleValidation(fl validator.FieldLevel) bool {
	switch r := fl.Field().Interface().(type) {
	case Role:
		return r.IsValid()
	case string:
		return Role(r).IsValid()
	}
	return false
}
