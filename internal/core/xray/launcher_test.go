package xray

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"go.uber.org/zap"
)

// An adopted core is known only through the PID file and is not our
// child, so Stop cannot rely on Wait to observe its exit.
func TestStopAdoptedProcess(t *testing.T) {
	cmd := exec.Command("sleep", "30")
	if err := cmd.Start(); err != nil {
		t.Skipf("cannot start helper process: %v", err)
	}
	go cmd.Wait()

	dir := t.TempDir()
	l := &Launcher{
		logPath: filepath.Join(dir, "xray.log"),
		pidPath: filepath.Join(dir, "xray.pid"),
		log:     zap.NewNop(),
	}
	if err := os.WriteFile(l.pidPath, []byte(strconv.Itoa(cmd.Process.Pid)), 0644); err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	if err := l.Stop(context.Background()); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 4*time.Second {
		t.Errorf("Stop took %v; liveness polling should notice the exit quickly", elapsed)
	}
	if l.Running() {
		t.Error("core still reported running after Stop")
	}
}
