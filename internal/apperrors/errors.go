package apperrors

import (
	"errors"
	"fmt"
)

// Sentinel error kinds for business-rule failures. Callers branch with
// errors.Is; the HTTP layer maps kinds to status codes (NotFound→404,
// Forbidden→403, Conflict→409, Invalid→400, IO→500).
var (
	ErrNotFound  = errors.New("not found")
	ErrForbidden = errors.New("forbidden")
	ErrConflict  = errors.New("conflict")
	ErrInvalid   = errors.New("invalid input")
	ErrIO        = errors.New("io failure")
)

func NotFoundf(format string, v ...interface{}) error {
	return fmt.Errorf(format+": %w", append(v, ErrNotFound)...)
}

func Forbiddenf(format string, v ...interface{}) error {
	return fmt.Errorf(format+": %w", append(v, ErrForbidden)...)
}

func Conflictf(format string, v ...interface{}) error {
	return fmt.Errorf(format+": %w", append(v, ErrConflict)...)
}

func Invalidf(format string, v ...interface{}) error {
	return fmt.Errorf(format+": %w", append(v, ErrInvalid)...)
}

func IOf(format string, v ...interface{}) error {
	return fmt.Errorf(format+": %w", append(v, ErrIO)...)
}
