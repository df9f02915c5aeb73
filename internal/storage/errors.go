package storage

import "errors"

var (
	ErrInvalidIdentifier = errors.New("invalid identifier")
	ErrUnknownDriver     = errors.New("unknown storage driver")
)
