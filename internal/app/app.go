// Package app wires the storage, configuration-build, geo and lifecycle
// layers together for the CLI.
package app

import (
	"context"
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"tunveil/internal/core"
	"tunveil/internal/core/tun"
	"tunveil/internal/core/xray"
	"tunveil/internal/geo"
	"tunveil/internal/paths"
	"tunveil/internal/sharelink"
	"tunveil/internal/storage"
	"tunveil/internal/storage/sqlite"
)

// DefaultProfile identifies this installation's session row in the
// host-level session table.
const DefaultProfile = "tunveil"

// App holds the long-lived collaborators shared by all commands.
type App struct {
	Store        storage.Storage
	Registry     *sharelink.Registry
	Builder      *xray.Builder
	Geo          *geo.Manager
	Orchestrator *core.Orchestrator
	Log          *zap.Logger

	DataDir    string
	ConfigPath string
}

// New builds the application graph. Leftover interface state from a
// crashed run is cleaned up before anything else starts.
func New(log *zap.Logger) (*App, error) {
	tun.CleanupIfNeeded()

	dataDir, err := paths.DataDir()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory: %w", err)
	}
	assetsDir, err := paths.AssetsDir()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve assets directory: %w", err)
	}

	store, err := sqlite.New(filepath.Join(dataDir, "tunveil.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	registry := sharelink.NewRegistry()
	builder := xray.NewBuilder(registry, assetsDir)

	launcher, err := xray.NewLauncher(log)
	if err != nil {
		store.Close()
		return nil, err
	}

	configPath := filepath.Join(dataDir, "config.json")
	orch := core.NewOrchestrator(core.OrchestratorConfig{
		Profile:    DefaultProfile,
		DataDir:    dataDir,
		ConfigPath: configPath,
		Store:      store,
		Builder:    builder,
		Host:       core.NewSessionGuard(store),
		Core:       launcher,
		Net:        core.DaemonStack{},
		Logger:     log,
	})
	// A previous CLI invocation may have left a tunnel running.
	orch.Adopt(context.Background())

	return &App{
		Store:        store,
		Registry:     registry,
		Builder:      builder,
		Geo:          geo.NewManager(assetsDir, log),
		Orchestrator: orch,
		Log:          log,
		DataDir:      dataDir,
		ConfigPath:   configPath,
	}, nil
}

// Close releases the application's resources.
func (a *App) Close() error {
	return a.Store.Close()
}
