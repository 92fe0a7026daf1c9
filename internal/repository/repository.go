package repository

import "errors"

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("not found")
	// ErrDuplicateJob is returned by Enqueue when a pending job with the
	// same (org_id, dedupe_key) already exists.
	ErrDuplicateJob = errors.New("duplicate job")
)
