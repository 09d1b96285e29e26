package score

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/MarMar-mg/school-managment-system-sub000/core"
	"github.com/MarMar-mg/school-managment-system-sub000/core/calendar"
)

var (
	periodTag  = "period"
	periodText = "period must be a jalali month formatted as YYYY-MM"
)

func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(periodTag, periodValidation)
	core.RegisterCustomTranslation(validate, translator, periodTag, periodText)
}

func periodValidation(fl validator.FieldLevel) bool {
	_, err := calendar.ParsePeriod(fl.Field().String())
	return err == nil
}
