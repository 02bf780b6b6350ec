package service

import "errors"

// notFoundError signals a missing entity (mapped to 404).
type notFoundError struct{ kind, id string }

func (e notFoundError) Error() string { return e.kind + " not found: " + e.id }

// ErrNotFound returns an error for a missing entity of the given kind.
func ErrNotFound(kind, id string) error { return notFoundError{kind: kind, id: id} }

// IsNotFound reports whether err indicates a missing entity.
func IsNotFound(err error) bool {
	var e notFoundError
	return errors.As(err, &e)
}

// conflictError signals an entity that already exists (mapped to 409).
type conflictError struct{ kind, id string }

func (e conflictError) Error() string { return e.kind + " already exists: " + e.id }

// ErrConflict returns an error for a duplicate entity id.
func ErrConflict(kind, id string) error { return conflictError{kind: kind, id: id} }

// IsConflict reports whether err indicates a duplicate entity.
func IsConflict(err error) bool {
	var e conflictError
	return errors.As(err, &e)
}

// invalidError signals a malformed request (mapped to 400).
type invalidError struct{ msg string }

func (e invalidError) Error() string { return e.msg }

// ErrInvalid returns a validation error with msg.
func ErrInvalid(msg string) error { return invalidError{msg: msg} }

// IsInvalid reports whether err indicates a malformed request.
func IsInvalid(err error) bool {
	var e invalidError
	return errors.As(err, &e)
}

// ErrAlreadyRunning is returned by a second call to Run.
var ErrAlreadyRunning = errors.New("service already running")
