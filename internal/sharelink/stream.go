package sharelink

import (
	"net/url"
	"strings"

	"tunveil/internal/core/xray"
)

// streamFromQuery builds stream settings from the URI query parameters
// shared by the vless and trojan link formats.
func streamFromQuery(q url.Values) *xray.StreamSettings {
	network := q.Get("type")
	if network == "" {
		network = "tcp"
	}

	ss := &xray.StreamSettings{
		Network: network,
	}

	switch q.Get("security") {
	case "tls":
		ss.Security = "tls"
		ss.TLSSettings = &xray.TLSSettings{
			ServerName:    q.Get("sni"),
			AllowInsecure: q.Get("allowInsecure") == "1",
			Fingerprint:   fingerprintOrDefault(q.Get("fp")),
		}
		if alpn := q.Get("alpn"); alpn != "" {
			ss.TLSSettings.ALPN = strings.Split(alpn, ",")
		}
	case "reality":
		ss.Security = "reality"
		ss.RealitySettings = &xray.RealitySettings{
			ServerName:  q.Get("sni"),
			Fingerprint: fingerprintOrDefault(q.Get("fp")),
			PublicKey:   q.Get("pbk"),
			ShortID:     q.Get("sid"),
			SpiderX:     q.Get("spx"),
		}
	}

	switch network {
	case "ws":
		ws := &xray.WSSettings{Path: q.Get("path")}
		if host := q.Get("host"); host != "" {
			ws.Headers = map[string]string{"Host": host}
		}
		ss.WSSettings = ws
	case "grpc":
		ss.GRPCSettings = &xray.GRPCSettings{
			ServiceName: q.Get("serviceName"),
			MultiMode:   q.Get("mode") == "multi",
		}
	case "http", "h2":
		hs := &xray.HTTPSettings{Path: q.Get("path")}
		if host := q.Get("host"); host != "" {
			hs.Host = []string{host}
		}
		ss.HTTPSettings = hs
	}

	return ss
}

// fingerprintOrDefault falls back to chrome for best compatibility.
func fingerprintOrDefault(fp string) string {
	if fp == "" {
		return "chrome"
	}
	return fp
}
