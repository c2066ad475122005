package question

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/sistira/core"
)

var (
	qTypeTag  = "qtype"
	qTypeText = "type must be one of OBJ or SUB"

	eduLevelTag  = "edulevel"
	eduLevelText = "invalid education level"

	difficultyTag  = "difficulty"
	difficultyText = "invalid difficulty"
)

// InitValidators registers the Question validators and their translations.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(qTypeTag, qTypeValidation)
	core.RegisterCustomTranslation(validate, translator, qTypeTag, qTypeText)

	_ = validate.RegisterValidation(eduLevelTag, oneOfValidation(EducationLevels))
	core.RegisterCustomTranslation(validate, translator, eduLevelTag, eduLevelText)

	_ = validate.RegisterValidation(difficultyTag, oneOfValidation(DifficultyLevels))
	core.RegisterCustomTranslation(validate, translator, difficultyTag, difficultyText)
}

func qTypeValidation(fl validator.FieldLevel) bool {
	return Type(fl.Field().String()).IsValid()
}

func oneOfValidation(choices []string) validator.Func {
	return func(fl validator.FieldLevel) bool {
		val := fl.Field().String()
		for _, c := range choices {
			if val == c {
				return true
			}
		}
		return false
	}
}
