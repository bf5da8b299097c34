package xray_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"tunveil/internal/core/types"
	"tunveil/internal/core/xray"
	"tunveil/internal/sharelink"
)

// End-to-end: a real vless link through the real converter registry into a
// full split-routing configuration.
func TestBuildFromVLESSLink(t *testing.T) {
	assets := t.TempDir()
	for _, name := range []string{"geoip.dat", "geosite.dat"} {
		if err := os.WriteFile(filepath.Join(assets, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	b := xray.NewBuilder(sharelink.NewRegistry(), assets)
	link := "vless://a2b4c6d8-1234-5678-9abc-def012345678@proxy.example.com:443?type=ws&security=tls&sni=proxy.example.com#srv"

	result, err := b.Build(link, types.VPNModeNonGlobal, 10808, 10809)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if result.SocksPort != 10808 || result.MetricsPort != 10809 {
		t.Errorf("ports = %d/%d, want 10808/10809", result.SocksPort, result.MetricsPort)
	}
	if result.ProxyAddr != "proxy.example.com" {
		t.Errorf("ProxyAddr = %q, want proxy.example.com", result.ProxyAddr)
	}

	var cfg xray.Config
	if err := json.Unmarshal(result.Blob, &cfg); err != nil {
		t.Fatal(err)
	}

	if len(cfg.Routing.Rules) < 5 {
		t.Errorf("got %d routing rules, want at least 5", len(cfg.Routing.Rules))
	}
	last := cfg.Routing.Rules[len(cfg.Routing.Rules)-1]
	if last.OutboundTag != xray.TagProxy || last.Port != "0-65535" {
		t.Errorf("last rule = %+v, want catch-all to proxy", last)
	}

	tags := make(map[string]bool)
	for _, ob := range cfg.Outbounds {
		tags[ob.Tag] = true
	}
	if !tags[xray.TagProxy] || !tags[xray.TagDirect] {
		t.Errorf("outbound tags = %v, want proxy and direct present", tags)
	}

	// The DNS allow-list must pin the proxy endpoint so resolving it never
	// loops through the tunnel.
	primary, ok := cfg.DNS.Servers[0].(map[string]interface{})
	if !ok {
		t.Fatalf("primary DNS server = %+v", cfg.DNS.Servers[0])
	}
	domains, _ := primary["domains"].([]interface{})
	if len(domains) == 0 || domains[0] != "full:proxy.example.com" {
		t.Errorf("DNS allow-list = %v, want proxy domain first", domains)
	}
}
