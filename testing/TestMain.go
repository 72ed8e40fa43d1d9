// Package testing puts the process into test mode when imported. Packages
// whose code paths consult app.InTestMode blank-import it from their tests.
package testing

import (
	"os"
	"sync"
	stdtesting "testing"
)

const testModeEnv = "NEWSDESK_TEST_MODE"

var once sync.Once

func ensureTestMode() {
	once.Do(func() {
		_ = os.Setenv(testModeEnv, "1")
		if os.Getenv("JWT_SECRET") == "" {
			_ = os.Setenv("JWT_SECRET", "test-secret")
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
