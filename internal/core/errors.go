package core

import "errors"

var (
	// ErrInvalidRecord is returned when an ingested record is missing a
	// required field or carries an out-of-range value. The record is
	// rejected and no statistics are mutated.
	ErrInvalidRecord = errors.New("invalid email record")

	// ErrInvalidConfig is returned when a scoring configuration fails
	// validation. Scoring and ranking calls fail closed.
	ErrInvalidConfig = errors.New("invalid scoring configuration")

	// ErrDuplicateRecord is reported by stats repositories when a record
	// ID has already been applied. Ingest treats it as a no-op.
	ErrDuplicateRecord = errors.New("record already ingested")
)
