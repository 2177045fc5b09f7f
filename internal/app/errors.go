package service

import "errors"

// Sentinel kinds for service errors.
var (
	ErrNotStarted        = errors.New("service not started")
	ErrInvalidSubmission = errors.New("invalid submission")
	ErrQueueFull         = errors.New("submission queue full")
	ErrDuplicate         = errors.New("duplicate submission")
)
