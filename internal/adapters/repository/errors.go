package repository

import "errors"

// Sentinel kinds for store errors. Missing rows are reported as
// model.ErrNotFound.
var (
	ErrInvalidKey   = errors.New("invalid snapshot key")
	ErrInvalidLimit = errors.New("invalid window limit")
)
