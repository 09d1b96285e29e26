package assessment

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/MarMar-mg/school-managment-system-sub000/core"
	"github.com/MarMar-mg/school-managment-system-sub000/core/calendar"
)

var (
	jalaliDateTag  = "jalali_date"
	jalaliDateText = "date must be a valid jalali date formatted as YYYY/MM/DD"
)

func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(jalaliDateTag, jalaliDateValidation)
	core.RegisterCustomTranslation(validate, translator, jalaliDateTag, jalaliDateText)
}

func jalaliDateValidation(fl validator.FieldLevel) bool {
	_, err := calendar.Parse(fl.Field().String())
	return err == nil
}
