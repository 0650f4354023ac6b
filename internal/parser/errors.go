package parser

import "errors"

var (
	// ErrAdvancedUnavailable is returned by the syntax-tree strategy when the probe failed
	ErrAdvancedUnavailable = errors.New("syntax tree backend unavailable")

	// ErrBinaryContent is returned by every strategy for content containing NUL bytes
	ErrBinaryContent = errors.New("content appears to be binary")

	// ErrUnsupportedLanguage is returned by the syntax-tree strategy outside its language set
	ErrUnsupportedLanguage = errors.New("language not supported by strategy")

	// ErrNoExtractor is recorded when a strategy has no registered extractor
	ErrNoExtractor = errors.New("no extractor registered for strategy")

	// ErrAllStrategiesFailed prefixes the error recorded on fallback results
	ErrAllStrategiesFailed = errors.New("all parsing strategies failed")
)
