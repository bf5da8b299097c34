package geo

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func withAssetURLs(t *testing.T, urls map[string]string) {
	t.Helper()
	orig := assetURLs
	assetURLs = urls
	t.Cleanup(func() { assetURLs = orig })
}

func TestDownloadAndPresence(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("binary-geo-data"))
	}))
	defer srv.Close()

	withAssetURLs(t, map[string]string{
		"geoip.dat":   srv.URL + "/geoip.dat",
		"geosite.dat": srv.URL + "/geosite.dat",
	})

	dir := filepath.Join(t.TempDir(), "assets")
	m := NewManager(dir, nil)

	if m.AssetsPresent() {
		t.Error("AssetsPresent before download should be false")
	}

	if err := m.Download(context.Background()); err != nil {
		t.Fatalf("Download failed: %v", err)
	}
	if !m.AssetsPresent() {
		t.Error("AssetsPresent after download should be true")
	}

	data, err := os.ReadFile(filepath.Join(dir, "geoip.dat"))
	if err != nil || string(data) != "binary-geo-data" {
		t.Errorf("downloaded content = %q, %v", data, err)
	}

	// No temp files left behind.
	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if filepath.Ext(e.Name()) == ".tmp" {
			t.Errorf("leftover temp file %s", e.Name())
		}
	}

	if err := m.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}
	if m.AssetsPresent() {
		t.Error("AssetsPresent after Clear should be false")
	}
	// Clearing an already-empty directory is fine.
	if err := m.Clear(); err != nil {
		t.Errorf("second Clear failed: %v", err)
	}
}

func TestDownloadFailureKeepsExistingAssets(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "not found", http.StatusNotFound)
	}))
	defer srv.Close()

	withAssetURLs(t, map[string]string{"geoip.dat": srv.URL + "/geoip.dat"})

	dir := t.TempDir()
	existing := filepath.Join(dir, "geoip.dat")
	if err := os.WriteFile(existing, []byte("old-data"), 0644); err != nil {
		t.Fatal(err)
	}

	m := NewManager(dir, nil)
	if err := m.Download(context.Background()); err == nil {
		t.Fatal("Download against a 404 should fail")
	}

	data, err := os.ReadFile(existing)
	if err != nil || string(data) != "old-data" {
		t.Errorf("existing asset clobbered by failed download: %q, %v", data, err)
	}
}

func TestAssetsPresentRejectsEmptyFiles(t *testing.T) {
	withAssetURLs(t, map[string]string{"geoip.dat": "http://unused.invalid"})

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "geoip.dat"), nil, 0644); err != nil {
		t.Fatal(err)
	}

	m := NewManager(dir, nil)
	if m.AssetsPresent() {
		t.Error("an empty asset file should not count as present")
	}
}
