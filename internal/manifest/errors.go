package manifest

import "errors"

var (
	// ErrDuplicateHash indicates a video insert collided with an existing SHA256.
	ErrDuplicateHash = errors.New("video fingerprint already registered")
	// ErrInvalidCode indicates a movie identity that is neither a standard
	// code nor an anonymous fingerprint.
	ErrInvalidCode = errors.New("invalid movie code")
	// ErrUnsupportedSuffix indicates a video suffix outside the allowed set.
	ErrUnsupportedSuffix = errors.New("unsupported video suffix")
	// ErrUnknownStage indicates a stage name outside the fixed stage list.
	ErrUnknownStage = errors.New("unknown stage name")
	// ErrSchemaMismatch indicates the database schema version doesn't match.
	ErrSchemaMismatch = errors.New("schema version mismatch")
)
