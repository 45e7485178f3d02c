package types

import "errors"

// User-input errors. They are wrapped with a descriptive message and can be
// shown to the user; no write has happened when one is returned.
var (
	ErrInvalidInput     = errors.New("invalid input")
	ErrInvalidOperation = errors.New("invalid operation")
	ErrDuplicateTagName = errors.New("tag name already in use")
)
