package model

import "errors"

var (
	ErrProfileNotFound   = NotFoundError{errors.New("profile not found")}
	ErrProfileScopeEmpty = ValidationError{errors.New("profile scope can't be empty")}
	ErrProfileNoReason   = ValidationError{errors.New("profile must hold at least one retention reason")}
	ErrLockReasonEmpty   = ValidationError{errors.New("lock reason can't be empty")}
)

type NotFoundError struct{ Err error }

func (e NotFoundError) Error() string { return e.Err.Error() }

func (e NotFoundError) Unwrap() error { return e.Err }

func IsNotFoundError(err error) bool {
	if err == nil {
		return false
	}
	var v NotFoundError
	return errors.As(err, &v)
}

type ValidationError struct{ Err error }

func (e ValidationError) Error() string { return e.Err.Error() }

func (e ValidationError) Unwrap() error { return e.Err }

func IsValidationError(err error) bool {
	if err == nil {
		return false
	}
	var v ValidationError
	return errors.As(err, &v)
}

func String(s string) *string { return &s }
