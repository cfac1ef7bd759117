package models

import "errors"

// Error classes shared by the review and mapping pipelines. Callers wrap
// them with fmt.Errorf("...: %w") and test with errors.Is.
var (
	ErrStoreUnavailable = errors.New("rule store unavailable")
	ErrLLMUnavailable   = errors.New("llm service unavailable")
	ErrAccessDenied     = errors.New("llm access denied")
	ErrMalformedOutput  = errors.New("malformed llm output")
	ErrInvalidInput     = errors.New("invalid input")
	ErrUnsupportedFile  = errors.New("unsupported file type")
	ErrNoSource         = errors.New("no source file uploaded")
)
