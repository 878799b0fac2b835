package document

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/registrar/core"
)

var (
	docTypeTag  = "doctype"
	docTypeText = "document type must be one of PHOTO, TRANSCRIPT, CERTIFICATE or SUPPORTING"
)

func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(docTypeTag, docTypeValidation)
	core.RegisterCustomTranslation(validate, translator, docTypeTag, docTypeText)
}

func docTypeValidation(fl validator.FieldLevel) bool {
	_, ok := ParseType(fl.Field().String())
	return ok
}
