package domain

import "errors"

var (
	ErrNotFound            = errors.New("not found")
	ErrInvalidArgument     = errors.New("invalid argument")
	ErrUnauthenticated     = errors.New("unauthenticated")
	ErrPermissionDenied    = errors.New("permission denied")
	ErrSelfRevoke          = errors.New("cannot revoke your own admin privilege")
	ErrLastAdmin           = errors.New("cannot revoke the last administrator")
	ErrAllocationExhausted = errors.New("could not allocate identifier")
	ErrControlCodeTaken    = errors.New("control code already in use")
	ErrControlCodeAssigned = errors.New("control code already assigned")
	ErrMissingReference    = errors.New("payment has no external reference")
	ErrUnknownTransition   = errors.New("unknown transaction type")
	ErrTransient           = errors.New("transient downstream failure")
	ErrEmailTaken          = errors.New("email already registered")
)
