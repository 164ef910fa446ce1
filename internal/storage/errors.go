package storage

import "errors"

// Storage errors shared by the ClickHouse and PostgreSQL adapters.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when a run or tick batch would overwrite existing rows.
	ErrDuplicateKey = errors.New("duplicate key")
)
