package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"
)

// Backend error codes. CodeNotFound matches the hosted REST layer's "no rows"
// code so read paths can treat it as an empty result.
const (
	CodeNotFound = "PGRST116"
	CodeConflict = "23505"
	CodeInternal = "XX000"
)

// Error is the structured error every repository call returns.
type Error struct {
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (%s)", e.Message, e.Code)
}

func (e *Error) Unwrap() error { return e.Err }

func IsNotFound(err error) bool { return hasCode(err, CodeNotFound) }

func IsConflict(err error) bool { return hasCode(err, CodeConflict) }

func hasCode(err error, code string) bool {
	var repoErr *Error
	return errors.As(err, &repoErr) && repoErr.Code == code
}

// wrap converts a gorm error into an *Error. nil stays nil.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	var repoErr *Error
	if errors.As(err, &repoErr) {
		return err
	}
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return &Error{Code: CodeNotFound, Message: op + ": no rows returned", Err: err}
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return &Error{Code: CodeConflict, Message: op + ": duplicate key", Err: err}
	default:
		return &Error{Code: CodeInternal, Message: fmt.Sprintf("%s: %v", op, err), Err: err}
	}
}
