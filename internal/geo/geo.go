package geo

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Assets downloaded into the assets directory. Their presence switches the
// route-rule policy from the baseline rule set to full split routing.
var assetURLs = map[string]string{
	"geoip.dat":   "https://github.com/Loyalsoldier/v2ray-rules-dat/releases/latest/download/geoip.dat",
	"geosite.dat": "https://github.com/Loyalsoldier/v2ray-rules-dat/releases/latest/download/geosite.dat",
}

// Manager downloads and tracks the geo databases used for split routing.
type Manager struct {
	assetsDir string
	client    *http.Client
	log       *zap.Logger
}

// NewManager creates a geo-asset manager rooted at assetsDir.
func NewManager(assetsDir string, log *zap.Logger) *Manager {
	if log == nil {
		log = zap.NewNop()
	}
	return &Manager{
		assetsDir: assetsDir,
		client: &http.Client{
			Timeout: 5 * time.Minute,
			Transport: &http.Transport{
				MaxIdleConns:    10,
				IdleConnTimeout: 90 * time.Second,
			},
		},
		log: log,
	}
}

// AssetsDir returns the directory assets are downloaded into.
func (m *Manager) AssetsDir() string {
	return m.assetsDir
}

// AssetsPresent reports whether all geo databases exist on disk.
func (m *Manager) AssetsPresent() bool {
	for name := range assetURLs {
		info, err := os.Stat(filepath.Join(m.assetsDir, name))
		if err != nil || info.IsDir() || info.Size() == 0 {
			return false
		}
	}
	return true
}

// Download fetches all geo databases concurrently. Each file is written to
// a temp path and renamed into place, so a failed or interrupted download
// never clobbers a working asset.
func (m *Manager) Download(ctx context.Context) error {
	if err := os.MkdirAll(m.assetsDir, 0755); err != nil {
		return fmt.Errorf("failed to create assets directory: %w", err)
	}

	g, ctx := errgroup.WithContext(ctx)
	for name, url := range assetURLs {
		name, url := name, url
		g.Go(func() error {
			return m.downloadOne(ctx, name, url)
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	m.log.Info("geo assets updated", zap.String("dir", m.assetsDir))
	return nil
}

func (m *Manager) downloadOne(ctx context.Context, name, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("failed to create request for %s: %w", name, err)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download %s: %w", name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to download %s: HTTP %d", name, resp.StatusCode)
	}

	tmpPath := filepath.Join(m.assetsDir, name+".tmp")
	tmp, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", tmpPath, err)
	}

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close %s: %w", tmpPath, err)
	}

	if err := os.Rename(tmpPath, filepath.Join(m.assetsDir, name)); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to move %s into place: %w", name, err)
	}

	m.log.Debug("downloaded geo asset", zap.String("name", name))
	return nil
}

// Clear removes all geo databases, reverting routing to the baseline rules.
func (m *Manager) Clear() error {
	for name := range assetURLs {
		path := filepath.Join(m.assetsDir, name)
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", name, err)
		}
	}
	return nil
}
