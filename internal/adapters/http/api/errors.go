package api

import "errors"

// Sentinel kinds for API errors.
var (
	ErrBadRequest = errors.New("bad request")
	ErrNoViewer   = errors.New("missing or invalid X-User-ID header")
)
