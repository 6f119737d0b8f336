package usecase

import "errors"

// Sentinel errors for use case layer
var (
	// ErrArchiveNotConfigured is returned by import when no archive repository is wired
	ErrArchiveNotConfigured = errors.New("message archive is not configured")

	// ErrUntimedMessage is returned by import for messages without sent_at,
	// since the archive can only serve messages by time range
	ErrUntimedMessage = errors.New("message has no sent_at")
)

// Context keys for error and log values
const (
	LoadIDKey = "load_id"
	JobIDKey  = "job_id"
)
