// Package guard flips the service into test mode when imported from test
// binaries, keeping runtime side effects out of tests.
package guard

import (
	"os"
	"sync"
)

var once sync.Once

func init() {
	once.Do(func() {
		if os.Getenv("GATEHOUSE_TEST_MODE") == "" {
			_ = os.Setenv("GATEHOUSE_TEST_MODE", "1")
		}
	})
}
