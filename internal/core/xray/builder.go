package xray

import (
	"encoding/json"
	"fmt"
	"net"
	"os"
	"strings"

	"tunveil/internal/core/types"
	pkgerrors "tunveil/pkg/errors"
)

// ParseResult is the envelope returned by the share-link-to-outbound
// conversion collaborator.
type ParseResult struct {
	Success bool       `json:"success"`
	Data    *ParseData `json:"data,omitempty"`
}

// ParseData carries the converted outbound descriptors.
type ParseData struct {
	Outbounds []Outbound `json:"outbounds"`
}

// LinkConverter converts a share-link string into outbound descriptors.
// Implementations report structural failure through the envelope rather
// than an error: an error means the link itself could not be handled.
type LinkConverter interface {
	Convert(link string) (*ParseResult, error)
}

// Builder assembles the complete runtime configuration from a share link,
// fixed inbound templates, the routing-rule policy, and the DNS policy.
//
// Build is pure apart from checking geo-asset presence on disk: identical
// inputs with identical asset presence yield byte-identical output.
type Builder struct {
	converter LinkConverter
	assetsDir string
}

// BuildResult is the outcome of a successful configuration build.
type BuildResult struct {
	Blob        []byte // pretty-printed JSON, written once per tunnel run
	ProxyAddr   string // proxy server host, for route bypass and DNS policy
	SocksPort   int
	MetricsPort int
}

// NewBuilder creates a Builder using the given converter and geo-asset
// directory.
func NewBuilder(converter LinkConverter, assetsDir string) *Builder {
	return &Builder{
		converter: converter,
		assetsDir: assetsDir,
	}
}

// Build transforms the share link into a serialized runtime configuration.
func (b *Builder) Build(shareLink string, mode types.VPNMode, socksPort, metricsPort int) (*BuildResult, error) {
	shareLink = strings.TrimSpace(shareLink)
	if shareLink == "" {
		return nil, &pkgerrors.BuildError{Link: shareLink, Err: pkgerrors.ErrInvalidShareLink}
	}
	if socksPort <= 0 || metricsPort <= 0 || socksPort == metricsPort {
		return nil, fmt.Errorf("socks port %d / metrics port %d: %w", socksPort, metricsPort, pkgerrors.ErrPortUnavailable)
	}

	result, err := b.converter.Convert(shareLink)
	if err != nil {
		return nil, &pkgerrors.BuildError{Link: shareLink, Err: fmt.Errorf("%w: %v", pkgerrors.ErrInvalidShareLink, err)}
	}
	if !result.Success || result.Data == nil {
		return nil, &pkgerrors.BuildError{Link: shareLink, Err: pkgerrors.ErrUpstreamParseFailure}
	}
	if len(result.Data.Outbounds) == 0 {
		return nil, &pkgerrors.BuildError{Link: shareLink, Err: pkgerrors.ErrInvalidShareLink}
	}

	// Only the first parsed outbound becomes the proxy egress; any extras
	// the converter returned are discarded so the tag invariant holds.
	proxy := result.Data.Outbounds[0]
	proxy.Tag = TagProxy

	geoAssets := b.geoAssetsPresent()
	proxyAddr := serverAddress(&proxy)

	cfg := &Config{
		Log:   &LogConfig{LogLevel: "warning"},
		Stats: &StatsConfig{},
		Metrics: &MetricsConfig{
			Tag: TagMetrics,
		},
		Policy: &PolicyConfig{
			System: &SystemPolicy{
				StatsInboundUplink:   true,
				StatsInboundDownlink: true,
			},
		},
	}

	// SOCKS5 inbound: user traffic enters here from the translator.
	cfg.Inbounds = append(cfg.Inbounds, Inbound{
		Tag:      TagSocksIn,
		Port:     socksPort,
		Listen:   "127.0.0.1",
		Protocol: "socks",
		Settings: map[string]interface{}{
			"auth": "noauth",
			"udp":  true,
		},
		Sniffing: &SniffingConfig{
			Enabled:      true,
			DestOverride: []string{"http", "tls", "quic"},
		},
	})

	// Diagnostics inbound: loopback-only; routing shunts its traffic to the
	// metrics handler so counter queries never leave through the proxy.
	cfg.Inbounds = append(cfg.Inbounds, Inbound{
		Tag:      TagMetricsIn,
		Port:     metricsPort,
		Listen:   "127.0.0.1",
		Protocol: "dokodemo-door",
		Settings: map[string]interface{}{
			"address": "127.0.0.1",
		},
	})

	cfg.Outbounds = append(cfg.Outbounds, proxy)
	cfg.Outbounds = append(cfg.Outbounds, Outbound{
		Tag:      TagDirect,
		Protocol: "freedom",
		Settings: map[string]interface{}{
			"domainStrategy": "UseIPv4",
		},
	})
	cfg.Outbounds = append(cfg.Outbounds, Outbound{
		Tag:      TagBlock,
		Protocol: "blackhole",
	})

	cfg.Routing = &RoutingConfig{
		DomainStrategy: "IPIfNonMatch",
		Rules:          routeRules(mode, geoAssets),
	}

	cfg.DNS = dnsPolicy(proxyAddr, geoAssets)

	blob, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", pkgerrors.ErrConfigSerialization, err)
	}

	return &BuildResult{
		Blob:        blob,
		ProxyAddr:   proxyAddr,
		SocksPort:   socksPort,
		MetricsPort: metricsPort,
	}, nil
}

// geoAssetsPresent reports whether any geo-data file has been downloaded.
func (b *Builder) geoAssetsPresent() bool {
	entries, err := os.ReadDir(b.assetsDir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if !e.IsDir() {
			return true
		}
	}
	return false
}

// serverAddress extracts the proxy server host from an outbound's settings.
// Both vnext-style (vless/vmess) and servers-style (trojan/shadowsocks)
// layouts are understood.
func serverAddress(ob *Outbound) string {
	first := func(v interface{}) map[string]interface{} {
		switch list := v.(type) {
		case []map[string]interface{}:
			if len(list) > 0 {
				return list[0]
			}
		case []interface{}:
			// Outbounds that round-tripped through JSON decode this way.
			if len(list) > 0 {
				if m, ok := list[0].(map[string]interface{}); ok {
					return m
				}
			}
		}
		return nil
	}
	for _, key := range []string{"vnext", "servers"} {
		if entry := first(ob.Settings[key]); entry != nil {
			if addr, ok := entry["address"].(string); ok {
				return addr
			}
		}
	}
	return ""
}

// isIPAddress reports whether host is a literal IP rather than a domain.
func isIPAddress(host string) bool {
	return net.ParseIP(host) != nil
}
