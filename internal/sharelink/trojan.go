package sharelink

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"tunveil/internal/core/xray"
)

// TrojanConverter implements Converter for the Trojan protocol
type TrojanConverter struct{}

func (c *TrojanConverter) Protocol() string {
	return "trojan"
}

func (c *TrojanConverter) Convert(uri string) (*xray.Outbound, error) {
	// Trojan URI format: trojan://password@address:port?parameters#remark
	if !strings.HasPrefix(uri, "trojan://") {
		return nil, fmt.Errorf("invalid Trojan URI: must start with trojan://")
	}

	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URI: %w", err)
	}

	password := u.User.Username()
	if password == "" {
		return nil, fmt.Errorf("password is required")
	}

	host := u.Hostname()
	portStr := u.Port()
	if host == "" || portStr == "" {
		return nil, fmt.Errorf("address and port are required")
	}

	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("invalid port: %w", err)
	}

	query := u.Query()
	ss := streamFromQuery(query)
	// Trojan links without an explicit security parameter still use TLS.
	if ss.Security == "" {
		ss.Security = "tls"
		ss.TLSSettings = &xray.TLSSettings{
			ServerName:  query.Get("sni"),
			Fingerprint: fingerprintOrDefault(query.Get("fp")),
		}
	}

	outbound := &xray.Outbound{
		Protocol: "trojan",
		Settings: map[string]interface{}{
			"servers": []map[string]interface{}{
				{
					"address":  host,
					"port":     port,
					"password": password,
				},
			},
		},
		StreamSettings: ss,
		Mux:            muxFor(query.Get("type"), ""),
	}

	return outbound, nil
}
