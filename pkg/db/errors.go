package db

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique user attribute is already taken.
	ErrDuplicate = errors.New("duplicate record")
)
