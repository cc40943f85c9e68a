package fees

import (
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/campus/core"
)

var (
	// custom validation tags & texts
	paidOnTag  = "paidon"
	paidOnText = "must be an RFC3339 timestamp or a YYYY-MM-DD date"
)

// InitValidators registers the fees-specific validators.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(paidOnTag, paidOnValidation)
	core.RegisterCustomTranslation(validate, translator, paidOnTag, paidOnText)
}

// paidOnValidation accepts the timestamp formats the ledger can resolve.
func paidOnValidation(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if _, err := time.Parse(time.RFC3339, s); err == nil {
		return true
	}
	_, err := time.Parse(dateLayout, s)
	return err == nil
}
