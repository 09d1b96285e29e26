package core

import (
	"fmt"

	"github.com/pkg/errors"
)

// FieldError is used to indicate an error with a specific struct field.
type FieldError struct {
	Field string
	Error string
}

type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err ValidationError) Error() string {
	if err.Err == nil {
		if len(err.Fields) > 0 {
			return err.Fields[0].Field + ": " + err.Fields[0].Error
		}
		return "validation failed"
	}
	return err.Err.Error()
}

// NotFoundError reports that a referenced entity does not exist.
type NotFoundError struct {
	Entity string
	ID     interface{}
}

func NewNotFoundError(entity string, id interface{}) error {
	return &NotFoundError{Entity: entity, ID: id}
}

func (err NotFoundError) Error() string {
	if err.ID == nil {
		return err.Entity + " not found"
	}
	return fmt.Sprintf("%s %v not found", err.Entity, err.ID)
}

// AuthorizationError reports that the actor may not act on the referenced entity.
type AuthorizationError struct {
	Reason string
}

func NewAuthorizationError(reason string) error {
	return &AuthorizationError{Reason: reason}
}

func (err AuthorizationError) Error() string {
	if err.Reason == "" {
		return "permission denied"
	}
	return err.Reason
}

// ConflictError reports a stale write: the row changed since it was read.
type ConflictError struct {
	Entity string
	ID     interface{}
}

func NewConflictError(entity string, id interface{}) error {
	return &ConflictError{Entity: entity, ID: id}
}

func (err ConflictError) Error() string {
	return fmt.Sprintf("%s %v was modified concurrently, reload and try again", err.Entity, err.ID)
}

func IsNotFound(err error) bool {
	_, ok := errors.Cause(err).(*NotFoundError)
	return ok
}

func IsConflict(err error) bool {
	_, ok := errors.Cause(err).(*ConflictError)
	return ok
}

type shutdown struct {
	message string
}

func NewShutdownError(msg string) error {
	return &shutdown{message: msg}
}

func (s shutdown) Error() string {
	return s.message
}

func IsShutdown(err error) bool {
	_, ok := errors.Cause(err).(*shutdown)
	return ok
}
