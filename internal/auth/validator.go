package auth

import (
	"regexp"

	"clientboard-backend/internal/apperr"
)

var emailRegexp = regexp.MustCompile("^[a-zA-Z0-9.!#$%&'*+/=?^_`{|}~-]+@[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?(?:\\.[a-zA-Z0-9](?:[a-zA-Z0-9-]{0,61}[a-zA-Z0-9])?)*$")

// validator collects problems in the order they are found, one per field.
type validator struct {
	seen     map[string]bool
	problems []string
}

func newValidator() *validator {
	return &validator{seen: make(map[string]bool)}
}

func (v *validator) checkCond(cond bool, key, msg string) {
	if cond || v.seen[key] {
		return
	}
	v.seen[key] = true
	v.problems = append(v.problems, msg)
}

func (v *validator) failed(key string) bool {
	return v.seen[key]
}

func (v *validator) hasErrors() bool {
	return len(v.problems) != 0
}

func (v *validator) toError() error {
	return apperr.Validations(v.problems)
}

func (v *validator) checkPassword(key, password, confirm, label string) {
	v.checkCond(password != "", key, label+" is required.")
	v.checkCond(len(password) >= 8, key, label+" must be at least 8 characters long.")
	// bcrypt ignores input past 72 bytes
	v.checkCond(len(password) <= 72, key, label+" must be at most 72 characters long.")
	v.checkCond(password == confirm, key, "Passwords do not match.")
}
