package xray

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"go.uber.org/zap"
	"tunveil/internal/paths"
	pkgerrors "tunveil/pkg/errors"
)

// Launcher runs the external proxy core as a detached child process.
//
// The launch contract is opaque: the core receives a data directory (geo
// assets) and a config file path, and reports nothing back beyond its exit.
// An early exit within the startup grace period is surfaced as a launch
// failure with the core's log output attached.
type Launcher struct {
	logPath string
	pidPath string
	cmd     *exec.Cmd
	running int32 // atomic: 0=not running, 1=running
	mu      sync.Mutex
	log     *zap.Logger
}

// startupGrace is how long to wait for the core to fail fast on a bad
// config before declaring the launch successful.
const startupGrace = 1 * time.Second

// NewLauncher creates a core launcher. The binary is located lazily at
// Start so a missing install only fails an actual connection attempt.
func NewLauncher(log *zap.Logger) (*Launcher, error) {
	cacheDir, err := paths.CacheDir()
	if err != nil {
		return nil, err
	}

	return &Launcher{
		logPath: filepath.Join(cacheDir, "xray.log"),
		pidPath: filepath.Join(cacheDir, "xray.pid"),
		log:     log,
	}, nil
}

// Start launches the core against the given data directory and config file.
func (l *Launcher) Start(ctx context.Context, dataDir, configPath string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if atomic.LoadInt32(&l.running) == 1 {
		return pkgerrors.ErrAlreadyConnected
	}

	binPath, err := findCoreBinary()
	if err != nil {
		return fmt.Errorf("%w: %v", pkgerrors.ErrCoreBinaryNotFound, err)
	}

	// Use exec.Command (not CommandContext) so the core survives CLI exit.
	l.cmd = exec.Command(binPath, "run", "-c", configPath)
	l.cmd.Env = append(os.Environ(), "XRAY_LOCATION_ASSET="+dataDir)

	// Detach from the parent process group so the core outlives us.
	l.cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}

	// When invoked via sudo, drop the core back to the real user's UID/GID
	// so a later non-root disconnect can signal it. Interface setup keeps
	// root in the parent; the core itself needs no elevated privileges.
	if uid, gid, ok := paths.RealUser(); ok {
		l.cmd.SysProcAttr.Credential = &syscall.Credential{
			Uid: uint32(uid),
			Gid: uint32(gid),
		}
	}

	logFile, err := os.Create(l.logPath)
	if err != nil {
		return fmt.Errorf("failed to create core log file: %w", err)
	}
	paths.ChownToRealUser(l.logPath)
	l.cmd.Stdout = logFile
	l.cmd.Stderr = logFile

	if err := l.cmd.Start(); err != nil {
		logFile.Close()
		return fmt.Errorf("%w: %v", pkgerrors.ErrCoreLaunch, err)
	}

	atomic.StoreInt32(&l.running, 1)

	pid := l.cmd.Process.Pid
	os.WriteFile(l.pidPath, []byte(strconv.Itoa(pid)), 0644)
	paths.ChownToRealUser(l.pidPath)
	l.log.Info("proxy core started", zap.Int("pid", pid), zap.String("config", configPath))

	go func() {
		l.cmd.Wait()
		atomic.StoreInt32(&l.running, 0)
		logFile.Close()
		os.Remove(l.pidPath)
	}()

	// Wait briefly to catch immediate exits (config rejections etc.).
	time.Sleep(startupGrace)

	if atomic.LoadInt32(&l.running) == 0 {
		logContent, _ := os.ReadFile(l.logPath)
		if len(logContent) > 0 {
			return fmt.Errorf("%w:\n%s", pkgerrors.ErrCoreLaunch, string(logContent))
		}
		return fmt.Errorf("%w: see %s", pkgerrors.ErrCoreLaunch, l.logPath)
	}

	return nil
}

// Stop signals the core to terminate: interrupt first, kill on timeout.
func (l *Launcher) Stop(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	proc := l.findProcess()
	if proc == nil {
		atomic.StoreInt32(&l.running, 0)
		os.Remove(l.pidPath)
		return nil
	}

	if err := proc.Signal(os.Interrupt); err != nil {
		if killErr := proc.Kill(); killErr != nil {
			// Process is already gone.
			atomic.StoreInt32(&l.running, 0)
			os.Remove(l.pidPath)
			return nil
		}
	}

	done := make(chan struct{}, 1)
	go func() {
		if l.cmd != nil && l.cmd.Process == proc {
			proc.Wait()
		} else {
			// An adopted core is not our child, so Wait returns
			// immediately. Poll liveness instead.
			for proc.Signal(syscall.Signal(0)) == nil {
				time.Sleep(100 * time.Millisecond)
			}
		}
		done <- struct{}{}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		proc.Kill()
	case <-ctx.Done():
		proc.Kill()
	}

	atomic.StoreInt32(&l.running, 0)
	os.Remove(l.pidPath)
	l.log.Info("proxy core stopped")
	return nil
}

// Running reports whether the core process is alive, checking the PID file
// for cross-process state.
func (l *Launcher) Running() bool {
	if atomic.LoadInt32(&l.running) == 1 {
		return true
	}

	pidBytes, err := os.ReadFile(l.pidPath)
	if err != nil {
		return false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(pidBytes)))
	if err != nil {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}

	// On Unix FindProcess always succeeds; signal 0 probes liveness.
	return proc.Signal(syscall.Signal(0)) == nil
}

// Pid returns the core's process ID, or 0 when it isn't running.
func (l *Launcher) Pid() int {
	if !l.Running() {
		return 0
	}
	if proc := l.findProcess(); proc != nil {
		return proc.Pid
	}
	return 0
}

// findProcess locates the core either via the running cmd or the PID file.
func (l *Launcher) findProcess() *os.Process {
	if l.cmd != nil && l.cmd.Process != nil {
		return l.cmd.Process
	}
	pidBytes, err := os.ReadFile(l.pidPath)
	if err != nil {
		return nil
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(pidBytes)))
	if err != nil {
		return nil
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return nil
	}
	return proc
}

// findCoreBinary finds the xray binary in common locations.
func findCoreBinary() (string, error) {
	locations := []string{
		"xray", // In PATH
		"/usr/local/bin/xray",
		"/usr/bin/xray",
		"/opt/xray/xray",
	}

	// Also check in the real user's home directory (works under sudo).
	if homeDir, err := paths.HomeDir(); err == nil {
		locations = append(locations,
			filepath.Join(homeDir, ".local", "bin", "xray"),
			filepath.Join(homeDir, ".local", "share", "tunveil", "cores", "xray"),
		)
	}

	for _, loc := range locations {
		if path, err := exec.LookPath(loc); err == nil {
			return path, nil
		}
	}

	return "", fmt.Errorf("xray binary not found in any common location")
}
