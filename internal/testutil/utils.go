package testutil

import (
	"io"
	"log"
	"os"
	"testing"
)

// TestLogger returns a logger tagged with the test name. Output is dropped
// once the test finishes so goroutines that outlive it stay quiet.
func TestLogger(t *testing.T) *log.Logger {
	logger := log.New(os.Stdout, "["+t.Name()+"] ", log.LstdFlags|log.Lmicroseconds)
	t.Cleanup(func() {
		logger.SetOutput(io.Discard)
	})
	return logger
}
