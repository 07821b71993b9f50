package manager

import (
	"errors"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/realsocial/real/errs"
)

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.]{3,30}$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	}); err != nil {
		panic(err)
	}
	return v
}

// ValidUsername reports whether username may be claimed.
func ValidUsername(username string) bool {
	return usernamePattern.MatchString(username)
}

// check validates v and converts failures into a Validation error naming
// every offending field.
func check(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make([]string, len(verrs))
	for i, fe := range verrs {
		if fe.Tag() == "username" {
			return ErrInvalidUsername
		}
		fields[i] = fe.Field() + " (" + fe.Tag() + ")"
	}
	return errs.NewValidation("invalid input: %s", strings.Join(fields, ", "))
}
