package xray

// dnsPolicy builds the deterministic resolver list.
//
// The primary resolver is restricted to a small domain allow-list that
// includes the proxy's own endpoint, so resolving the proxy server never
// loops back through the tunnel. When geo data is present a regional
// resolver handles local-region names, then generic fallbacks (including a
// DNS-over-HTTPS endpoint) take everything else. The hosts table pins the
// resolver hostnames themselves so they never need resolution.
func dnsPolicy(proxyAddr string, geoAssets bool) *DNSConfig {
	allowList := []string{"domain:googleapis.com", "domain:gstatic.com"}
	if proxyAddr != "" && !isIPAddress(proxyAddr) {
		allowList = append([]string{"full:" + proxyAddr}, allowList...)
	}

	servers := []interface{}{
		map[string]interface{}{
			"address": "8.8.8.8",
			"domains": allowList,
		},
	}

	if geoAssets {
		servers = append(servers, map[string]interface{}{
			"address":   "223.5.5.5",
			"domains":   []string{"geosite:cn", "geosite:private"},
			"expectIPs": []string{"geoip:cn"},
		})
	}

	servers = append(servers,
		"https://1.1.1.1/dns-query",
		"8.8.8.8",
		"1.1.1.1",
	)

	return &DNSConfig{
		Hosts: map[string]string{
			"dns.google":      "8.8.8.8",
			"dns.alidns.com":  "223.5.5.5",
			"one.one.one.one": "1.1.1.1",
		},
		Servers: servers,
	}
}
