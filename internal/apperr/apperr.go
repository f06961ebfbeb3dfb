// Package apperr holds the error kinds handlers translate into responses.
package apperr

import "errors"

// ErrNotFound covers both a missing row and a row owned by another user.
var ErrNotFound = errors.New("not found")

type ValidationError struct {
	Field   string
	Message string

	// Problems lists every failed check when a form reports more than one.
	Problems []string
}

func (e *ValidationError) Error() string {
	return e.Message
}

func Validation(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// Validations reports several problems at once; Message is the first.
func Validations(problems []string) error {
	if len(problems) == 0 {
		return nil
	}
	return &ValidationError{Message: problems[0], Problems: problems}
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
