package tun

import (
	"os"
	"testing"
)

func TestStaleStopFileCleared(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	t.Setenv("SUDO_USER", "")

	if err := SignalStop(); err != nil {
		t.Fatal(err)
	}
	path, err := stopFilePath()
	if err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("stop file should exist after SignalStop: %v", err)
	}

	// A stop signal nobody consumed must not tear down the next daemon
	// on its first tick.
	clearStaleStop()
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("stale stop file should be gone before the daemon starts waiting")
	}
}
