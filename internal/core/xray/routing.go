package xray

import "tunveil/internal/core/types"

// regionalDNSBypass lists well-known regional public-DNS/anycast addresses
// that must go direct: they stay reachable for plain resolution even when
// the proxy endpoint itself is down, and proxying them would loop the
// resolver traffic the split-routing DNS policy depends on.
var regionalDNSBypass = []string{
	"223.5.5.5",       // AliDNS
	"223.6.6.6",       // AliDNS secondary
	"119.29.29.29",    // DNSPod
	"114.114.114.114", // 114DNS
	"180.76.76.76",    // Baidu
}

// routeRules decides, from VPN mode and geo-asset presence, which routing
// rules to inject. Evaluation at the core is first-match-wins, so order is
// significant: the metrics shunt comes first and the catch-all comes last.
func routeRules(mode types.VPNMode, geoAssets bool) []RoutingRule {
	// Baseline: diagnostics traffic goes to the metrics handler, never
	// through the proxy.
	rules := []RoutingRule{{
		Type:        "field",
		InboundTag:  []string{TagMetricsIn},
		OutboundTag: TagMetrics,
	}}

	// Global mode proxies everything, and split routing without downloaded
	// geo data cannot classify traffic; both fall back to full proxy via
	// the core's default (route to the first outbound, which is the proxy).
	if mode == types.VPNModeGlobal || !geoAssets {
		return rules
	}

	// Split routing. Block and direct exceptions must precede the catch-all.
	rules = append(rules,
		RoutingRule{
			Type:        "field",
			Domain:      []string{"geosite:category-ads-all"},
			OutboundTag: TagBlock,
		},
		RoutingRule{
			Type:        "field",
			Domain:      []string{"geosite:cn", "geosite:private"},
			OutboundTag: TagDirect,
		},
		RoutingRule{
			Type:        "field",
			IP:          append([]string{"geoip:cn", "geoip:private"}, regionalDNSBypass...),
			OutboundTag: TagDirect,
		},
		RoutingRule{
			Type:        "field",
			Port:        "0-65535",
			OutboundTag: TagProxy,
		},
	)
	return rules
}
