// Package guard switches binaries into test mode when blank-imported by a
// test, so calling main never dials Postgres or Redis.
package guard

import "os"

func init() {
	if os.Getenv("PHARMAPOS_TEST_MODE") == "" {
		_ = os.Setenv("PHARMAPOS_TEST_MODE", "1")
	}
}
