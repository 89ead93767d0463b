package ensemble

import (
	"fmt"
	"os"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	exitCode := m.Run()

	// Cancelled rounds leave their provider goroutines draining into the
	// buffered results channel; give them a moment to finish.
	time.Sleep(200 * time.Millisecond)

	leakOpts := []goleak.Option{
		goleak.IgnoreTopFunction("time.Sleep"),
	}
	if err := goleak.Find(leakOpts...); err != nil {
		// Report but don't fail — transient collector goroutines may
		// still be running.
		fmt.Fprintf(os.Stderr, "goroutine leak check: %v\n", err)
	}

	os.Exit(exitCode)
}
