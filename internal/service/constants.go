package service

import "time"

// Timeout constants for external commands
const (
	// DefaultCommandTimeout bounds a single git or gh invocation
	DefaultCommandTimeout = 2 * time.Minute
	// maxTracedOutput caps the raw output attached to debug log entries
	maxTracedOutput = 8192
)
