package core

import (
	"errors"
	"fmt"
)

// TransportError reports that the store was unreachable or answered with a
// non-success status.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: store unavailable: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// NotFoundError reports an operation on an id that no longer exists.
type NotFoundError struct {
	Op string
	ID int64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: item %d not found", e.Op, e.ID)
}

// ValidationError reports input the UI or the store refused.
type ValidationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid data: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return e.Err }

var (
	ErrNotEditing     = errors.New("row is not being edited")
	ErrSaveInProgress = errors.New("a save for this field is already in progress")
	ErrUnknownItem    = errors.New("item is not in the collection")
)

// IsNotFound reports whether err is or wraps a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsValidation reports whether err is or wraps a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsTransport reports whether err is or wraps a TransportError.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// UserMessage returns the short text shown in the error banner.
func UserMessage(err error) string {
	var ve *ValidationError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ve):
		return ve.Error()
	case IsNotFound(err):
		return "This item no longer exists"
	case IsTransport(err):
		return "Could not reach the database, please retry"
	case errors.Is(err, ErrSaveInProgress):
		return "Still saving, please wait"
	case errors.Is(err, ErrNotEditing), errors.Is(err, ErrUnknownItem):
		return "This row is no longer available, reload the list"
	}
	return "Something went wrong"
}
