package types

import "errors"

// Domain errors for type validation
var (
	ErrEmptyChunkID     = errors.New("chunk ID cannot be empty")
	ErrInvalidLineRange = errors.New("invalid line range")
	ErrInvalidStrategy  = errors.New("invalid parsing strategy")
	ErrMissingFilePath  = errors.New("file path is required")
)
