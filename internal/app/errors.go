package service

import "errors"

// Sentinel kinds for engine errors.
var (
	ErrInvalidCategory = errors.New("category must be a non-empty name other than \"all\"")
	ErrInvalidTheme    = errors.New("invalid theme index")
	ErrInvalidRating   = errors.New("rating must be between 1 and 5")
	ErrMatrixTooLarge  = errors.New("category too large to analyse")
	// ErrAsyncRequired means the category is analysable, but only as a background job.
	ErrAsyncRequired   = errors.New("category too large for synchronous analysis; submit a job")
	ErrRankingNotFound = errors.New("ranking not found")
	ErrJobNotFound     = errors.New("job not found")
	ErrQueueFull       = errors.New("analysis queue full")
	ErrNotStarted      = errors.New("service not started")
	ErrStopped         = errors.New("service stopped before the job ran")
)
