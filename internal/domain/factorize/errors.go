package factorize

import "errors"

// Precondition errors. Callers are expected to check matrix sufficiency first.
var (
	ErrEmptyMatrix       = errors.New("factorization needs at least one row and one column")
	ErrInvalidThemeCount = errors.New("theme count must be at least 1")
	ErrRaggedMatrix      = errors.New("matrix rows differ in length")
	ErrNegativeEntry     = errors.New("matrix entries must be finite and non-negative")
)
