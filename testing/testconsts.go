package testing

import "time"

// TestLoggerLevelError keeps command output free of request logs.
const TestLoggerLevelError = "error"

// Endpoint Constants
// Common URLs used by client tests.
const (
	TestBaseURL   = "https://api.example.com"
	TestItemsPath = "/items"
	TestUploadURL = "https://api.example.com/upload"
)

// Timing Constants
// Short durations keep retry tests fast while staying well above scheduler jitter.
const (
	TestRetryDelay     = 50 * time.Millisecond
	TestAttemptTimeout = 100 * time.Millisecond
	TestEventuallyWait = 2 * time.Second
	TestEventuallyTick = 10 * time.Millisecond
)
