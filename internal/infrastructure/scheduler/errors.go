package scheduler

import "errors"

var (
	// ErrInvalidPayload is returned when a task body cannot be decoded
	ErrInvalidPayload = errors.New("invalid task payload")

	// ErrNotConfigured is returned when a worker is started without handlers
	ErrNotConfigured = errors.New("worker is not configured")
)
