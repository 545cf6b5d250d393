package analysis

import "errors"

// Validation errors. They are returned before any session state changes.
var (
	ErrFileTooLarge    = errors.New("file too large")
	ErrUnsupportedType = errors.New("unsupported file type")
	ErrMalformedJSON   = errors.New("malformed JSON")
	ErrEmptyContent    = errors.New("document is empty")
)
