package catalog

import "errors"

// Catalog registry errors.
var (
	// ErrOperationNotFound is returned when an operation id is not registered.
	ErrOperationNotFound = errors.New("operation not found")

	// ErrOperationIDEmpty is returned when a descriptor has no id.
	ErrOperationIDEmpty = errors.New("operation id cannot be empty")

	// ErrInvokeNil is returned when a descriptor has no target callable.
	ErrInvokeNil = errors.New("operation target callable cannot be nil")

	// ErrAlreadyRegistered is returned when registering a duplicate id.
	ErrAlreadyRegistered = errors.New("operation already registered")

	// ErrDuplicateParam is returned when a descriptor declares the same
	// parameter name twice.
	ErrDuplicateParam = errors.New("duplicate parameter name")

	// ErrParamNameEmpty is returned when a parameter spec has no name.
	ErrParamNameEmpty = errors.New("parameter name cannot be empty")

	// ErrInvalidSpec is returned for structurally invalid specs.
	ErrInvalidSpec = errors.New("invalid specification")

	// ErrResolverNotFound is returned when a delegate-type id has no
	// registered resolver.
	ErrResolverNotFound = errors.New("type resolver not found")

	// ErrResolverIDEmpty is returned when registering a resolver without an id.
	ErrResolverIDEmpty = errors.New("type resolver id cannot be empty")
)
