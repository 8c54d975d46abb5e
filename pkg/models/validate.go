package models

import "github.com/go-playground/validator/v10"

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks the struct tags of a record or request payload.
func Validate(v interface{}) error {
	return validate.Struct(v)
}
