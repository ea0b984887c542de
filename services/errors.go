package services

import (
	"errors"
	"fmt"
)

var (
	ErrServiceInUse = errors.New("service has appointment history and cannot be deleted")
	ErrNotFound     = errors.New("record not found")
)

// ValidationError is raised before any remote call; nothing has changed.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

func invalid(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// PersistenceError wraps a failed gateway call. Local state is left as it
// was so the caller can retry.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func persistenceError(op string, err error) error {
	if err == nil {
		return nil
	}
	var pe *PersistenceError
	var ve *ValidationError
	if errors.As(err, &pe) || errors.As(err, &ve) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}
