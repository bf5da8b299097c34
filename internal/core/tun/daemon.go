package tun

import (
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
	"tunveil/internal/paths"
)

// stopFilePath returns the path of the stop-signal file that SignalStop()
// creates to tell the daemon to exit.
func stopFilePath() (string, error) {
	dir, err := paths.CacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "tun.stop"), nil
}

// RunDaemon is the entry point for the long-running TUN daemon subprocess.
// It brings the virtual interface up, then blocks until the stop file
// appears or SIGTERM/SIGINT is received, then tears everything down.
//
// This is invoked by the hidden "tund" command, which the orchestrator
// spawns as a detached child so the tunnel survives CLI exit.
func RunDaemon(opts Options) error {
	log, err := daemonLogger()
	if err != nil {
		return err
	}
	defer log.Sync()

	log.Info("tund starting",
		zap.Int("socks_port", opts.SocksPort),
		zap.Strings("bypasses", opts.RemoteAddrs),
	)

	// A stop file left over from a dead predecessor would tear this
	// daemon down on its first tick.
	clearStaleStop()

	if err := Up(opts); err != nil {
		log.Error("tunnel setup failed", zap.Error(err))
		return err
	}
	log.Info("tunnel ready")

	// Block until SignalStop() or a termination signal.
	stopPath, _ := stopFilePath()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, unix.SIGTERM, unix.SIGINT)

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

loop:
	for {
		select {
		case <-sigCh:
			break loop
		case <-ticker.C:
			if _, err := os.Stat(stopPath); err == nil {
				os.Remove(stopPath)
				break loop
			}
		}
	}

	log.Info("shutting down, restoring system state")
	if err := Down(); err != nil {
		log.Warn("teardown incomplete", zap.Error(err))
	}
	log.Info("tund exited cleanly")
	return nil
}

// Spawn launches the tund subprocess detached and waits for the tunnel to
// become ready. The subprocess re-executes the current binary with the
// hidden daemon command.
func Spawn(opts Options) error {
	opts = opts.withDefaults()

	self, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to locate executable: %w", err)
	}

	args := []string{
		"tund",
		"--socks-port", strconv.Itoa(opts.SocksPort),
		"--mtu", strconv.Itoa(opts.MTU),
	}
	if len(opts.RemoteAddrs) > 0 {
		args = append(args, "--bypass", strings.Join(opts.RemoteAddrs, ","))
	}
	if len(opts.DNSServers) > 0 {
		args = append(args, "--dns", strings.Join(opts.DNSServers, ","))
	}

	cmd := exec.Command(self, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to spawn tund: %w", err)
	}
	// Reap the child when it eventually exits.
	go cmd.Wait()

	// Wait for the daemon's final setup step (the state file).
	deadline := time.Now().Add(15 * time.Second)
	for time.Now().Before(deadline) {
		if Ready() {
			return nil
		}
		// A dead daemon will never become ready.
		if cmd.ProcessState != nil {
			break
		}
		time.Sleep(200 * time.Millisecond)
	}
	return fmt.Errorf("tund did not become ready; check %s", daemonLogPath())
}

// clearStaleStop removes a leftover stop file. SignalStop writes the file
// unconditionally, so a signal sent to an already-dead daemon persists
// until the next daemon starts.
func clearStaleStop() {
	if path, err := stopFilePath(); err == nil {
		os.Remove(path)
	}
}

// SignalStop asks a running daemon to tear down and exit.
func SignalStop() error {
	path, err := stopFilePath()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, nil, 0644); err != nil {
		return fmt.Errorf("failed to write stop file: %w", err)
	}
	return nil
}

func daemonLogPath() string {
	dir, err := paths.CacheDir()
	if err != nil {
		return "tund.log"
	}
	return filepath.Join(dir, "tund.log")
}

// daemonLogger builds a file-backed zap logger; the daemon is detached
// from any terminal so stdout is useless.
func daemonLogger() (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.OutputPaths = []string{daemonLogPath()}
	cfg.ErrorOutputPaths = cfg.OutputPaths
	log, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build daemon logger: %w", err)
	}
	paths.ChownToRealUser(daemonLogPath())
	return log, nil
}
