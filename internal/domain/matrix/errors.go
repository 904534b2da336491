package matrix

import "errors"

// Sentinel errors for matrix construction.
var (
	// ErrCategoryMismatch means a collaborator handed over a ranking or image
	// from another category. It is a programming error, not sparse data.
	ErrCategoryMismatch = errors.New("ranking or image does not belong to category")
	// ErrTooLarge means the matrix exceeds the configured row or column cap.
	ErrTooLarge = errors.New("ratings matrix exceeds size limit")
)
