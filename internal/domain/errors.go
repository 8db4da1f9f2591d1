package domain

import "errors"

// Sentinel errors for the retrieval core. Callers match them with errors.Is;
// producers wrap them with fmt.Errorf("...: %w", ...) to add context.
var (
	// ErrInvalidArgument covers caller mistakes such as k <= 0 on search or a
	// non-positive index dimension.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrDimensionMismatch means an embedding's length disagrees with the
	// index dimension fixed at construction time.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrDuplicateKey means a chunk id was re-added without the replace flag.
	ErrDuplicateKey = errors.New("duplicate chunk id")

	// ErrZeroVector means an all-zero embedding was offered; L2 normalization
	// is undefined for it.
	ErrZeroVector = errors.New("zero vector")

	// ErrNotFound means a chunk id or document source does not exist.
	ErrNotFound = errors.New("not found")

	// ErrPersistenceCorrupt means the on-disk vector blob and metadata
	// sidecar are missing, mismatched, or unreadable.
	ErrPersistenceCorrupt = errors.New("persisted index corrupt")

	// ErrSourceLoadFailed wraps failures from the document source collaborator.
	ErrSourceLoadFailed = errors.New("source load failed")

	// ErrDecoding means a document's bytes are not valid text.
	ErrDecoding = errors.New("decoding error")
)
