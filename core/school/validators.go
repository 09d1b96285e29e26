package school

import (
	"regexp"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/MarMar-mg/school-managment-system-sub000/core"
)

var (
	phoneTag   = "phone"
	phoneText  = "phone number must be 11 digits starting with 09"
	phoneRegex = regexp.MustCompile(`^09\d{9}$`)
)

func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(phoneTag, phoneValidation)
	core.RegisterCustomTranslation(validate, translator, phoneTag, phoneText)
}

func phoneValidation(fl validator.FieldLevel) bool {
	return phoneRegex.MatchString(fl.Field().String())
}
