// Package guard switches the process into test mode when imported so binaries
// and workers skip their runtime side effects.
package guard

import (
	"os"
	"sync"
)

const testModeEnv = "RFP_TEST_MODE"

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv(testModeEnv) == "" {
			_ = os.Setenv(testModeEnv, "1")
		}
	})
}
