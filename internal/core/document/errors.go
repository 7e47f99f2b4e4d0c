package document

import "errors"

var (
	// ErrUnsupportedFormat is returned when the declared format is not one
	// the normalizer understands.
	ErrUnsupportedFormat = errors.New("unsupported document format")

	// ErrMalformedInput is returned when no text at all can be recovered
	// from the input bytes. Partially malformed input yields a Document
	// flagged Partial instead.
	ErrMalformedInput = errors.New("malformed document input")
)
