package ir

import "errors"

var (
	// ErrInvalidIntent is returned for a request type other than Create,
	// Update or Delete.
	ErrInvalidIntent = errors.New("invalid request type")

	// ErrMissingIdentity is returned when Update or Delete arrive without
	// the identity assigned at Create.
	ErrMissingIdentity = errors.New("physical resource id is required")

	// ErrMissingProperty is returned when a required property is absent or empty.
	ErrMissingProperty = errors.New("missing required property")

	// ErrNotFound is wrapped by external clients when the target resource
	// does not exist.
	ErrNotFound = errors.New("resource not found")

	// ErrAlreadyExists is wrapped by external clients when a named resource
	// already exists.
	ErrAlreadyExists = errors.New("resource already exists")

	// ErrConflict is wrapped by external clients when a delete is refused
	// because the resource is still referenced.
	ErrConflict = errors.New("resource still in use")
)
