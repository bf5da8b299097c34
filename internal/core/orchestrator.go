package core

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"tunveil/internal/core/tun"
	"tunveil/internal/core/types"
	"tunveil/internal/core/xray"
	"tunveil/internal/storage"
	"tunveil/internal/storage/models"
	"tunveil/pkg/errors"
)

// CoreLauncher starts and stops the proxy core process. Running and Pid
// must work across processes: a fresh CLI invocation adopts a tunnel its
// predecessor started.
type CoreLauncher interface {
	Start(ctx context.Context, dataDir, configPath string) error
	Stop(ctx context.Context) error
	Running() bool
	Pid() int
}

// NetStack brings the virtual interface and SOCKS translation up and down.
type NetStack interface {
	Up(opts tun.Options) error
	Down() error
	Ready() bool
}

// DaemonStack is the production NetStack: the interface work runs in a
// spawned privileged daemon so the CLI process itself can exit while the
// tunnel stays up.
type DaemonStack struct{}

func (DaemonStack) Up(opts tun.Options) error { return tun.Spawn(opts) }
func (DaemonStack) Down() error               { return tun.SignalStop() }
func (DaemonStack) Ready() bool               { return tun.Ready() }

const (
	// Restart polls tunnel teardown at this cadence, bounded so a wedged
	// core cannot hang the restart forever.
	restartPollInterval = 200 * time.Millisecond
	restartPollMax      = 25
)

// Orchestrator owns the tunnel lifecycle state machine. All transitions
// are serialized on a single mutex: concurrent Start/Stop/Restart calls
// execute one at a time, and a Start against an already-active tunnel is
// rejected rather than queued.
type Orchestrator struct {
	mu          sync.Mutex
	status      types.Status
	connectedAt *time.Time

	profile    string
	dataDir    string
	configPath string
	proxyAddr  string

	store   storage.Storage
	builder *xray.Builder
	host    HostVPN
	core    CoreLauncher
	net     NetStack
	ports   PortAllocator
	log     *zap.Logger

	notify func(types.Status)
}

// OrchestratorConfig wires the orchestrator's collaborators.
type OrchestratorConfig struct {
	Profile    string
	DataDir    string
	ConfigPath string
	Store      storage.Storage
	Builder    *xray.Builder
	Host       HostVPN
	Core       CoreLauncher
	Net        NetStack
	Logger     *zap.Logger
}

// NewOrchestrator creates an orchestrator in the Disconnected state.
func NewOrchestrator(cfg OrchestratorConfig) *Orchestrator {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{
		status:     types.StatusDisconnected,
		profile:    cfg.Profile,
		dataDir:    cfg.DataDir,
		configPath: cfg.ConfigPath,
		store:      cfg.Store,
		builder:    cfg.Builder,
		host:       cfg.Host,
		core:       cfg.Core,
		net:        cfg.Net,
		log:        log,
	}
}

// NotifyStatus registers a callback invoked on every status transition.
// It replaces any previous callback.
func (o *Orchestrator) NotifyStatus(fn func(types.Status)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.notify = fn
}

// Session returns a snapshot of the current tunnel session.
func (o *Orchestrator) Session() types.TunnelSession {
	o.mu.Lock()
	defer o.mu.Unlock()
	return types.TunnelSession{
		Status:      o.status,
		ConnectedAt: o.connectedAt,
	}
}

// Adopt rehydrates in-memory state from the persisted session row, so a
// fresh process can stop or restart a tunnel its predecessor started. A
// row claiming an active tunnel with neither the core nor the interface
// actually up is a crash leftover and gets reset.
func (o *Orchestrator) Adopt(ctx context.Context) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.status.Active() {
		return
	}
	sess, err := o.store.GetSession(ctx, o.profile)
	if err != nil || sess == nil || !types.Status(sess.Status).Active() {
		return
	}

	if !o.core.Running() && !o.net.Ready() {
		o.log.Warn("resetting stale session row", zap.String("status", sess.Status))
		if err := o.store.SaveSession(ctx, &models.Session{
			Profile:   o.profile,
			Status:    string(types.StatusDisconnected),
			UpdatedAt: time.Now(),
		}); err != nil {
			o.log.Warn("failed to reset session", zap.Error(err))
		}
		return
	}

	o.status = types.StatusConnected
	o.connectedAt = sess.ConnectedAt
	o.proxyAddr = sess.ProxyAddr
}

// Start brings the tunnel up: conflict guard, preference resolution,
// port validation, configuration build, core launch, interface setup.
// A start blocked by another active tunnel never leaves Disconnected.
// Any failure after a partial bring-up tears down what came up, so the
// tunnel is never left half-connected.
func (o *Orchestrator) Start(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.startLocked(ctx)
}

func (o *Orchestrator) startLocked(ctx context.Context) error {
	if o.status.Active() {
		return errors.ErrAlreadyConnected
	}
	if o.status == types.StatusInvalid {
		return fmt.Errorf("%w: set a new share link to re-provision", errors.ErrSessionInvalid)
	}

	// The guard runs before any transition: a start blocked by another
	// active tunnel must not be observable as Connecting.
	if err := guardAgainstConflicts(ctx, o.host, o.profile); err != nil {
		return err
	}

	o.setStatus(types.StatusConnecting)

	link, mode, err := o.loadPreferences(ctx)
	if err != nil {
		o.setStatus(types.StatusDisconnected)
		return err
	}

	socksPort, metricsPort, err := o.resolvePorts(ctx)
	if err != nil {
		o.setStatus(types.StatusDisconnected)
		return err
	}

	build, err := o.builder.Build(link, mode, socksPort, metricsPort)
	if err != nil {
		o.setStatus(types.StatusDisconnected)
		return err
	}

	if err := os.WriteFile(o.configPath, build.Blob, 0600); err != nil {
		o.setStatus(types.StatusDisconnected)
		return fmt.Errorf("%w: %v", errors.ErrConfigSerialization, err)
	}

	if err := o.core.Start(ctx, o.dataDir, o.configPath); err != nil {
		o.setStatus(types.StatusDisconnected)
		return &errors.LaunchError{Component: "core", Err: err}
	}

	opts := tun.Options{SocksPort: build.SocksPort}
	if build.ProxyAddr != "" {
		opts.RemoteAddrs = []string{build.ProxyAddr}
	}
	if err := o.net.Up(opts); err != nil {
		if stopErr := o.core.Stop(ctx); stopErr != nil {
			o.log.Warn("failed to stop core after interface setup failure",
				zap.Error(stopErr))
		}
		o.setStatus(types.StatusDisconnected)
		return fmt.Errorf("%w: %v", errors.ErrInterfaceSetup, err)
	}

	now := time.Now()
	o.connectedAt = &now
	o.proxyAddr = build.ProxyAddr
	o.setStatus(types.StatusConnected)

	// Store the core's PID, not ours: the CLI process exits right after
	// connecting, while the core lives for the whole session.
	if err := o.store.SaveSession(ctx, &models.Session{
		Profile:     o.profile,
		Status:      string(types.StatusConnected),
		PID:         o.core.Pid(),
		VPNMode:     string(mode),
		SocksPort:   build.SocksPort,
		MetricsPort: build.MetricsPort,
		ProxyAddr:   build.ProxyAddr,
		ConnectedAt: &now,
		UpdatedAt:   now,
	}); err != nil {
		o.log.Warn("failed to persist session", zap.Error(err))
	}

	o.log.Info("tunnel connected",
		zap.String("mode", string(mode)),
		zap.Int("socksPort", build.SocksPort),
		zap.Int("metricsPort", build.MetricsPort))
	return nil
}

// Stop tears the tunnel down in reverse bring-up order. Teardown keeps
// going past individual step failures so the host is restored as far as
// possible; the first error is reported.
func (o *Orchestrator) Stop(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stopLocked(ctx)
}

func (o *Orchestrator) stopLocked(ctx context.Context) error {
	if !o.status.Active() {
		return errors.ErrNotConnected
	}

	o.setStatus(types.StatusDisconnecting)

	var firstErr error
	if err := o.net.Down(); err != nil {
		firstErr = fmt.Errorf("%w: %v", errors.ErrInterfaceSetup, err)
		o.log.Warn("interface teardown failed", zap.Error(err))
	}
	if err := o.core.Stop(ctx); err != nil {
		if firstErr == nil {
			firstErr = err
		}
		o.log.Warn("core stop failed", zap.Error(err))
	}

	o.connectedAt = nil
	o.proxyAddr = ""
	o.setStatus(types.StatusDisconnected)

	now := time.Now()
	if err := o.store.SaveSession(ctx, &models.Session{
		Profile:   o.profile,
		Status:    string(types.StatusDisconnected),
		UpdatedAt: now,
	}); err != nil {
		o.log.Warn("failed to persist session", zap.Error(err))
	}

	o.log.Info("tunnel disconnected")
	return firstErr
}

// Restart stops the tunnel, waits for the core and interface to actually
// go away, then starts it again with freshly-read preferences. The wait
// is bounded; a tunnel that refuses to die fails the restart instead of
// hanging it.
func (o *Orchestrator) Restart(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.status.Active() {
		if err := o.stopLocked(ctx); err != nil && !errors.Is(err, errors.ErrNotConnected) {
			return fmt.Errorf("restart: %w", err)
		}
	}

	for i := 0; i < restartPollMax; i++ {
		if !o.core.Running() && !o.net.Ready() {
			break
		}
		if i == restartPollMax-1 {
			return fmt.Errorf("restart: %w", errors.ErrStopTimeout)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(restartPollInterval):
		}
	}

	return o.startLocked(ctx)
}

// Reassert re-runs interface setup after a transient network change
// without touching the core process.
func (o *Orchestrator) Reassert(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.status != types.StatusConnected {
		return errors.ErrNotConnected
	}

	o.setStatus(types.StatusReasserting)
	if err := o.net.Down(); err != nil {
		o.log.Warn("interface teardown during reassert failed", zap.Error(err))
	}

	socksPort := 0
	if v, err := o.store.GetSetting(ctx, types.PrefSocksPort); err == nil {
		socksPort, _ = strconv.Atoi(v)
	}
	// The proxy server bypass from the original bring-up must survive,
	// or traffic to the proxy endpoint loops back through the tunnel.
	opts := tun.Options{SocksPort: socksPort}
	if o.proxyAddr != "" {
		opts.RemoteAddrs = []string{o.proxyAddr}
	}
	if err := o.net.Up(opts); err != nil {
		o.setStatus(types.StatusInvalid)
		return fmt.Errorf("%w: %v", errors.ErrInterfaceSetup, err)
	}

	o.setStatus(types.StatusConnected)
	return nil
}

// Reset clears a terminal Invalid state so the session can start again.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.status == types.StatusInvalid {
		o.status = types.StatusDisconnected
	}
}

func (o *Orchestrator) setStatus(s types.Status) {
	o.status = s
	if o.notify != nil {
		o.notify(s)
	}
}

// loadPreferences reads the share link and routing mode. The link is
// required; the mode defaults to NonGlobal when unset.
func (o *Orchestrator) loadPreferences(ctx context.Context) (string, types.VPNMode, error) {
	link, err := o.store.GetSetting(ctx, types.PrefConfigLink)
	if err != nil || link == "" {
		return "", "", &errors.PreferenceError{
			Key: types.PrefConfigLink,
			Err: errors.ErrMissingPreference,
		}
	}

	mode := types.VPNModeNonGlobal
	if v, err := o.store.GetSetting(ctx, types.PrefVPNMode); err == nil && v != "" {
		m := types.VPNMode(v)
		if !m.Valid() {
			return "", "", &errors.PreferenceError{
				Key: types.PrefVPNMode,
				Err: fmt.Errorf("unknown mode %q", v),
			}
		}
		mode = m
	}
	return link, mode, nil
}

// resolvePorts returns validated SOCKS and metrics ports, allocating free
// ones for any preference that is unset. Allocated ports are written back
// so the daemon and metrics client see the same values.
func (o *Orchestrator) resolvePorts(ctx context.Context) (int, int, error) {
	socksPort, err := o.resolvePort(ctx, types.PrefSocksPort)
	if err != nil {
		return 0, 0, err
	}
	metricsPort, err := o.resolvePort(ctx, types.PrefTrafficPort)
	if err != nil {
		return 0, 0, err
	}
	if socksPort == metricsPort {
		return 0, 0, fmt.Errorf("%w: SOCKS and metrics ports collide on %d",
			errors.ErrPortUnavailable, socksPort)
	}
	return socksPort, metricsPort, nil
}

func (o *Orchestrator) resolvePort(ctx context.Context, key string) (int, error) {
	if v, err := o.store.GetSetting(ctx, key); err == nil && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return 0, &errors.PreferenceError{Key: key, Err: fmt.Errorf("not a number: %q", v)}
		}
		if err := o.ports.CheckPort(port); err != nil {
			return 0, err
		}
		return port, nil
	}

	port, err := o.ports.FreePort()
	if err != nil {
		return 0, err
	}
	if err := o.store.SetSetting(ctx, key, strconv.Itoa(port)); err != nil {
		return 0, fmt.Errorf("failed to persist %s: %w", key, err)
	}
	return port, nil
}
