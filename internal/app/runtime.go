package app

import (
	"os"
	"strings"
	"sync/atomic"
)

// TestModeEnv makes the binaries return before dialing Postgres or Redis
// when set to "1" or "true".
const TestModeEnv = "PHARMAPOS_TEST_MODE"

var testMode atomic.Bool

func init() {
	RefreshTestMode()
}

// InTestMode reports the flag captured by the last RefreshTestMode.
func InTestMode() bool {
	return testMode.Load()
}

// RefreshTestMode re-reads TestModeEnv.
func RefreshTestMode() {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(TestModeEnv))) {
	case "1", "true":
		testMode.Store(true)
	default:
		testMode.Store(false)
	}
}
