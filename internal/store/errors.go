// Package store defines the persistence model for enrolled students and
// attendance records, the repository interfaces its backends implement, and
// the embedding vector helpers shared by all of them.
package store

import "errors"

var (
	// ErrNotFound marks lookups and deletions whose target does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDimensionMismatch marks embeddings whose length differs from the
	// configured embedding dimension. Never coerced, always surfaced.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrInvalidScope marks filter combinations the store refuses to
	// address, such as a subject filter without a section.
	ErrInvalidScope = errors.New("invalid scope")
)
