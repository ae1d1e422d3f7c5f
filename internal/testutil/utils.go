package testutil

import (
	"log"
	"os"
	"testing"
)

// TestLogger returns a logger whose lines are tagged with the test name so
// interleaved output from gateway goroutines can be told apart.
func TestLogger(t testing.TB) *log.Logger {
	logger := log.New(os.Stdout, "["+t.Name()+"] ", log.LstdFlags|log.Lmsgprefix)
	t.Cleanup(func() {
		logger.SetOutput(os.Stderr)
	})
	return logger
}
