package shared

import (
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/neuromagic/academy/core"
	"github.com/neuromagic/academy/core/lead"
	"github.com/neuromagic/academy/core/user"
)

// NewValidator returns a validator with the custom validations of every domain registered,
// and the english translator of their messages.
func NewValidator() (*validator.Validate, ut.Translator) {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")

	validate := validator.New()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	lead.InitValidators(validate, translator)
	return validate, translator
}
