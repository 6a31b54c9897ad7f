package contextutils

import (
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// IsValidEmail checks if an email address is valid using go-playground/validator
func IsValidEmail(email string) bool {
	return validate.Var(email, "email") == nil
}

// IsValidUsername checks that a username is 3-50 alphanumeric characters
func IsValidUsername(username string) bool {
	return validate.Var(username, "required,alphanum,min=3,max=50") == nil
}

// ValidateID rejects malformed learner/topic/subject references before any work begins.
// Returns an INVALID_IDENTIFIER error with the field name in the details.
func ValidateID(field string, id int) error {
	if id <= 0 {
		return NewAppError(ErrorCodeInvalidIdentifier, SeverityWarn, "Malformed identifier", field)
	}
	return nil
}

// ValidateIDs validates a set of identifier fields at once, failing on the first bad one.
func ValidateIDs(fields map[string]int) error {
	for field, id := range fields {
		if err := ValidateID(field, id); err != nil {
			return err
		}
	}
	return nil
}
