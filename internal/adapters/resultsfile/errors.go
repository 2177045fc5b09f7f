package resultsfile

import "errors"

// Sentinel kinds for results file errors.
var (
	ErrMalformedLine   = errors.New("malformed results line")
	ErrDuplicatePlayer = errors.New("duplicate player")
)
