package orchestrator

import (
	"os"
	"strings"
	"time"
)

// Timeout constants for the release workflow
var (
	// WorkflowOverheadTimeout bounds everything outside the CI wait budget
	WorkflowOverheadTimeout = getTimeoutOrDefault("WORKFLOW_OVERHEAD_TIMEOUT", 30*time.Minute, 30*time.Second)
	// DefaultLockTimeout is how long a run waits for a concurrent run to release the lock
	DefaultLockTimeout = getTimeoutOrDefault("LOCK_TIMEOUT", 10*time.Second, 200*time.Millisecond)
)

// isTestEnvironment detects if we're running in a test environment
func isTestEnvironment() bool {
	for _, arg := range os.Args {
		if strings.Contains(arg, ".test") || strings.Contains(arg, "go test") {
			return true
		}
	}
	return os.Getenv("GO_TEST") == "true" || os.Getenv("TEST_MODE") == "true"
}

// getTimeoutOrDefault returns production timeout or test timeout based on environment
func getTimeoutOrDefault(envVar string, prodDefault, testDefault time.Duration) time.Duration {
	if env := os.Getenv(envVar); env != "" {
		if duration, err := time.ParseDuration(env); err == nil {
			return duration
		}
	}
	if isTestEnvironment() {
		return testDefault
	}
	return prodDefault
}
