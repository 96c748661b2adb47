package grade

import (
	"strings"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/academia/core"
)

var (
	gradeTag  = "grade"
	gradeText = "grade must be one of: " + strings.Join(Values, " ")
)

func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(gradeTag, gradeValidation)
	core.RegisterCustomTranslation(validate, translator, gradeTag, gradeText)
}

func gradeValidation(fl validator.FieldLevel) bool {
	val := fl.Field().String()
	for _, v := range Values {
		if v == val {
			return true
		}
	}
	return false
}
