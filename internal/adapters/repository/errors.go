package repository

import "errors"

// Sentinel kinds for repository errors.
var (
	ErrNotFound      = errors.New("record not found")
	ErrInvalidRating = errors.New("rating must be between 1 and 5")
	ErrInvalidRecord = errors.New("invalid record")
)
