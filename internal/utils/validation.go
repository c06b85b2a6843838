package contextutils

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// IsValidEmail checks if an email address is valid using go-playground/validator
func IsValidEmail(email string) bool {
	return validate.Var(email, "email") == nil
}

// ValidateStruct runs validator tags on s and converts failures into ErrValidationFailed
func ValidateStruct(s interface{}) error {
	if err := validate.Struct(s); err != nil {
		if verrs, ok := err.(validator.ValidationErrors); ok {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fe.Field()+" "+fe.Tag())
			}
			return WrapErrorf(ErrValidationFailed, "invalid fields: %s", strings.Join(fields, ", "))
		}
		return WrapError(ErrValidationFailed, err.Error())
	}
	return nil
}
