package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

var once sync.Once

// testEnv holds values the binaries require but tests never exercise.
var testEnv = map[string]string{
	"RFP_TEST_MODE":  "1",
	"SESSION_SECRET": "test-session-secret",
	"CSRF_SECRET":    "test-csrf-secret",
	"JWT_SECRET":     "test-jwt-secret-with-enough-bytes-000",
}

func ensureTestMode() {
	once.Do(func() {
		for key, value := range testEnv {
			if os.Getenv(key) == "" {
				_ = os.Setenv(key, value)
			}
		}
	})
}

func init() {
	ensureTestMode()
}

func TestMain(m *stdtesting.M) {
	ensureTestMode()
	os.Exit(m.Run())
}
