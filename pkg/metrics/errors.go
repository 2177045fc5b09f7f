package metrics

import "errors"

// ErrUnknownStatus is returned by RecordSubmission for a status outside the
// Submission* constants; the counter is left untouched.
var ErrUnknownStatus = errors.New("unknown submission status")
