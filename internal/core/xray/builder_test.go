package xray

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"tunveil/internal/core/types"
	pkgerrors "tunveil/pkg/errors"
)

// stubConverter returns a canned envelope or error.
type stubConverter struct {
	result *ParseResult
	err    error
}

func (s *stubConverter) Convert(link string) (*ParseResult, error) {
	return s.result, s.err
}

func vlessEnvelope(addr string) *ParseResult {
	return &ParseResult{
		Success: true,
		Data: &ParseData{
			Outbounds: []Outbound{{
				Protocol: "vless",
				Settings: map[string]interface{}{
					"vnext": []map[string]interface{}{
						{"address": addr, "port": 443},
					},
				},
			}},
		},
	}
}

func assetsDirWith(t *testing.T, files ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestBuildProducesCompleteConfig(t *testing.T) {
	b := NewBuilder(&stubConverter{result: vlessEnvelope("proxy.example.com")}, t.TempDir())

	result, err := b.Build("vless://link", types.VPNModeGlobal, 1080, 9090)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}

	if result.ProxyAddr != "proxy.example.com" {
		t.Errorf("ProxyAddr = %q, want proxy.example.com", result.ProxyAddr)
	}
	if result.SocksPort != 1080 || result.MetricsPort != 9090 {
		t.Errorf("ports = %d/%d, want 1080/9090", result.SocksPort, result.MetricsPort)
	}

	var cfg Config
	if err := json.Unmarshal(result.Blob, &cfg); err != nil {
		t.Fatalf("Blob is not valid JSON: %v", err)
	}

	if cfg.Metrics == nil || cfg.Metrics.Tag != TagMetrics {
		t.Errorf("metrics stanza = %+v, want tag %q", cfg.Metrics, TagMetrics)
	}
	if cfg.Stats == nil {
		t.Error("stats stanza missing")
	}
	if cfg.Policy == nil || cfg.Policy.System == nil || !cfg.Policy.System.StatsInboundUplink {
		t.Error("policy stanza should enable inbound counters")
	}

	if len(cfg.Inbounds) != 2 {
		t.Fatalf("inbounds = %d, want 2", len(cfg.Inbounds))
	}
	socks := cfg.Inbounds[0]
	if socks.Tag != TagSocksIn || socks.Port != 1080 || socks.Listen != "127.0.0.1" {
		t.Errorf("unexpected socks inbound: %+v", socks)
	}
	if socks.Sniffing == nil || !socks.Sniffing.Enabled {
		t.Error("socks inbound should sniff destinations")
	}
	metrics := cfg.Inbounds[1]
	if metrics.Tag != TagMetricsIn || metrics.Port != 9090 || metrics.Protocol != "dokodemo-door" {
		t.Errorf("unexpected metrics inbound: %+v", metrics)
	}

	if len(cfg.Outbounds) != 3 {
		t.Fatalf("outbounds = %d, want 3", len(cfg.Outbounds))
	}
	wantTags := []string{TagProxy, TagDirect, TagBlock}
	for i, want := range wantTags {
		if cfg.Outbounds[i].Tag != want {
			t.Errorf("outbound[%d].Tag = %q, want %q", i, cfg.Outbounds[i].Tag, want)
		}
	}

	if cfg.DNS == nil || len(cfg.DNS.Servers) == 0 {
		t.Fatal("dns stanza missing")
	}
}

func TestBuildDeterministic(t *testing.T) {
	b := NewBuilder(&stubConverter{result: vlessEnvelope("proxy.example.com")}, t.TempDir())

	first, err := b.Build("vless://link", types.VPNModeGlobal, 1080, 9090)
	if err != nil {
		t.Fatal(err)
	}
	second, err := b.Build("vless://link", types.VPNModeGlobal, 1080, 9090)
	if err != nil {
		t.Fatal(err)
	}
	if string(first.Blob) != string(second.Blob) {
		t.Error("identical inputs produced different blobs")
	}
}

func TestBuildDiscardsExtraOutbounds(t *testing.T) {
	env := vlessEnvelope("proxy.example.com")
	env.Data.Outbounds = append(env.Data.Outbounds, Outbound{Protocol: "vmess"})

	b := NewBuilder(&stubConverter{result: env}, t.TempDir())
	result, err := b.Build("vless://link", types.VPNModeGlobal, 1080, 9090)
	if err != nil {
		t.Fatal(err)
	}

	var cfg Config
	if err := json.Unmarshal(result.Blob, &cfg); err != nil {
		t.Fatal(err)
	}
	for _, ob := range cfg.Outbounds {
		if ob.Protocol == "vmess" {
			t.Error("extra outbound from the converter should be discarded")
		}
	}
}

func TestBuildErrors(t *testing.T) {
	okConv := &stubConverter{result: vlessEnvelope("proxy.example.com")}

	tests := []struct {
		name    string
		conv    LinkConverter
		link    string
		socks   int
		metrics int
		wantErr error
	}{
		{"empty link", okConv, "   ", 1080, 9090, pkgerrors.ErrInvalidShareLink},
		{"zero socks port", okConv, "vless://x", 0, 9090, pkgerrors.ErrPortUnavailable},
		{"zero metrics port", okConv, "vless://x", 1080, 0, pkgerrors.ErrPortUnavailable},
		{"colliding ports", okConv, "vless://x", 1080, 1080, pkgerrors.ErrPortUnavailable},
		{"converter error", &stubConverter{err: os.ErrInvalid}, "vless://x", 1080, 9090, pkgerrors.ErrInvalidShareLink},
		{"failure envelope", &stubConverter{result: &ParseResult{Success: false}}, "vless://x", 1080, 9090, pkgerrors.ErrUpstreamParseFailure},
		{"nil data", &stubConverter{result: &ParseResult{Success: true}}, "vless://x", 1080, 9090, pkgerrors.ErrUpstreamParseFailure},
		{"no outbounds", &stubConverter{result: &ParseResult{Success: true, Data: &ParseData{}}}, "vless://x", 1080, 9090, pkgerrors.ErrInvalidShareLink},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuilder(tt.conv, t.TempDir())
			_, err := b.Build(tt.link, types.VPNModeGlobal, tt.socks, tt.metrics)
			if !pkgerrors.Is(err, tt.wantErr) {
				t.Errorf("Build error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestRouteRules(t *testing.T) {
	tests := []struct {
		name      string
		mode      types.VPNMode
		geoAssets bool
		wantLen   int
	}{
		{"global with assets", types.VPNModeGlobal, true, 1},
		{"global without assets", types.VPNModeGlobal, false, 1},
		{"split without assets", types.VPNModeNonGlobal, false, 1},
		{"split with assets", types.VPNModeNonGlobal, true, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rules := routeRules(tt.mode, tt.geoAssets)
			if len(rules) != tt.wantLen {
				t.Fatalf("got %d rules, want %d", len(rules), tt.wantLen)
			}

			// The metrics shunt always comes first.
			if rules[0].OutboundTag != TagMetrics || rules[0].InboundTag[0] != TagMetricsIn {
				t.Errorf("first rule = %+v, want metrics shunt", rules[0])
			}

			if tt.wantLen == 5 {
				if rules[1].OutboundTag != TagBlock {
					t.Errorf("second rule should block ads, got %+v", rules[1])
				}
				last := rules[len(rules)-1]
				if last.OutboundTag != TagProxy || last.Port != "0-65535" {
					t.Errorf("last rule = %+v, want catch-all to proxy", last)
				}
			}
		})
	}
}

func TestBuildSplitRoutingRequiresAssets(t *testing.T) {
	conv := &stubConverter{result: vlessEnvelope("proxy.example.com")}

	noAssets := NewBuilder(conv, t.TempDir())
	result, err := noAssets.Build("vless://x", types.VPNModeNonGlobal, 1080, 9090)
	if err != nil {
		t.Fatal(err)
	}
	var cfg Config
	json.Unmarshal(result.Blob, &cfg)
	if len(cfg.Routing.Rules) != 1 {
		t.Errorf("split routing without assets got %d rules, want baseline only", len(cfg.Routing.Rules))
	}

	withAssets := NewBuilder(conv, assetsDirWith(t, "geoip.dat", "geosite.dat"))
	result, err = withAssets.Build("vless://x", types.VPNModeNonGlobal, 1080, 9090)
	if err != nil {
		t.Fatal(err)
	}
	json.Unmarshal(result.Blob, &cfg)
	if len(cfg.Routing.Rules) != 5 {
		t.Errorf("split routing with assets got %d rules, want 5", len(cfg.Routing.Rules))
	}
}

func TestDNSPolicy(t *testing.T) {
	dns := dnsPolicy("proxy.example.com", false)

	primary, ok := dns.Servers[0].(map[string]interface{})
	if !ok {
		t.Fatalf("primary server = %+v, want restricted resolver", dns.Servers[0])
	}
	domains := primary["domains"].([]string)
	if domains[0] != "full:proxy.example.com" {
		t.Errorf("primary allow-list = %v, want proxy domain first", domains)
	}

	// A literal IP proxy address needs no resolver entry.
	dns = dnsPolicy("1.2.3.4", false)
	primary = dns.Servers[0].(map[string]interface{})
	for _, d := range primary["domains"].([]string) {
		if d == "full:1.2.3.4" {
			t.Error("IP proxy address should not be in the DNS allow-list")
		}
	}

	// Geo assets add the regional resolver.
	dns = dnsPolicy("proxy.example.com", true)
	if len(dns.Servers) != 5 {
		t.Fatalf("got %d servers with geo assets, want 5", len(dns.Servers))
	}
	regional := dns.Servers[1].(map[string]interface{})
	if regional["address"] != "223.5.5.5" {
		t.Errorf("regional resolver = %v, want 223.5.5.5", regional["address"])
	}

	if dns.Hosts["dns.google"] != "8.8.8.8" {
		t.Error("resolver hostnames should be pinned in the hosts table")
	}
}

func TestServerAddress(t *testing.T) {
	tests := []struct {
		name string
		ob   Outbound
		want string
	}{
		{
			"vnext typed",
			Outbound{Settings: map[string]interface{}{
				"vnext": []map[string]interface{}{{"address": "a.example.com"}},
			}},
			"a.example.com",
		},
		{
			"servers decoded",
			Outbound{Settings: map[string]interface{}{
				"servers": []interface{}{map[string]interface{}{"address": "b.example.com"}},
			}},
			"b.example.com",
		},
		{"no settings", Outbound{}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := serverAddress(&tt.ob); got != tt.want {
				t.Errorf("serverAddress = %q, want %q", got, tt.want)
			}
		})
	}
}
