package tun

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"tunveil/internal/paths"
)

// tunState is persisted to disk so system routes and DNS can be restored
// after a crash.
type tunState struct {
	Gateway     string   `json:"gateway"`
	Interface   string   `json:"interface"`
	RemoteAddrs []string `json:"remote_addrs"`
	DeviceName  string   `json:"device_name"`
	DNSServers  []string `json:"dns_servers"`
}

// stateFilePath returns the path to the TUN state file.
func stateFilePath() (string, error) {
	dir, err := paths.CacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "tun.state"), nil
}

// saveState writes the current TUN state to disk for crash recovery.
func saveState(state *tunState) error {
	path, err := stateFilePath()
	if err != nil {
		return fmt.Errorf("failed to get state file path: %w", err)
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	paths.ChownToRealUser(path)
	return nil
}

// readState reads and parses the TUN state file.
func readState() (*tunState, error) {
	path, err := stateFilePath()
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var state tunState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// removeState deletes the state file after a clean shutdown.
func removeState() {
	if path, err := stateFilePath(); err == nil {
		os.Remove(path)
	}
}

// CleanupIfNeeded checks for a stale TUN state file and restores routes and
// DNS if found. Should be called on application startup.
func CleanupIfNeeded() {
	state, err := readState()
	if err != nil {
		return // No state file, nothing to clean up.
	}

	if state.Gateway != "" {
		restoreDefaultRoute(state.Gateway)
	}
	if len(state.RemoteAddrs) > 0 {
		removeBypassRoutes(state.RemoteAddrs)
	}
	restoreDNS()

	removeState()
}
