package sharelink

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"tunveil/internal/core/xray"
)

// ShadowsocksConverter implements Converter for the Shadowsocks protocol
type ShadowsocksConverter struct{}

func (c *ShadowsocksConverter) Protocol() string {
	return "shadowsocks"
}

func (c *ShadowsocksConverter) Convert(uri string) (*xray.Outbound, error) {
	// SS URI format: ss://base64(method:password)@address:port#remark
	// or the legacy form: ss://base64(method:password@address:port)#remark
	if !strings.HasPrefix(uri, "ss://") && !strings.HasPrefix(uri, "shadowsocks://") {
		return nil, fmt.Errorf("invalid Shadowsocks URI")
	}

	body := strings.TrimPrefix(strings.TrimPrefix(uri, "shadowsocks://"), "ss://")

	// Drop the fragment (remark)
	if idx := strings.Index(body, "#"); idx != -1 {
		body = body[:idx]
	}

	var method, password, host string
	var port int

	if strings.Contains(body, "@") {
		parts := strings.SplitN(body, "@", 2)

		userinfo := parts[0]
		if decoded, err := decodeBase64(userinfo); err == nil {
			userinfo = string(decoded)
		} else if unescaped, err := url.QueryUnescape(userinfo); err == nil {
			userinfo = unescaped
		}

		mp := strings.SplitN(userinfo, ":", 2)
		if len(mp) != 2 {
			return nil, fmt.Errorf("invalid userinfo: expected method:password")
		}
		method, password = mp[0], mp[1]

		var err error
		host, port, err = splitHostPort(parts[1])
		if err != nil {
			return nil, err
		}
	} else {
		// Legacy form: the whole body is base64.
		decoded, err := decodeBase64(body)
		if err != nil {
			return nil, fmt.Errorf("failed to decode Shadowsocks URI: %w", err)
		}
		text := string(decoded)

		at := strings.LastIndex(text, "@")
		if at == -1 {
			return nil, fmt.Errorf("invalid Shadowsocks URI format")
		}
		mp := strings.SplitN(text[:at], ":", 2)
		if len(mp) != 2 {
			return nil, fmt.Errorf("invalid userinfo: expected method:password")
		}
		method, password = mp[0], mp[1]

		host, port, err = splitHostPort(text[at+1:])
		if err != nil {
			return nil, err
		}
	}

	if method == "" || password == "" || host == "" {
		return nil, fmt.Errorf("method, password, and address are required")
	}

	outbound := &xray.Outbound{
		Protocol: "shadowsocks",
		Settings: map[string]interface{}{
			"servers": []map[string]interface{}{
				{
					"address":  host,
					"port":     port,
					"method":   method,
					"password": password,
				},
			},
		},
		StreamSettings: &xray.StreamSettings{
			Network: "tcp",
		},
		Mux: muxFor("tcp", ""),
	}

	return outbound, nil
}

func splitHostPort(s string) (string, int, error) {
	idx := strings.LastIndex(s, ":")
	if idx == -1 {
		return "", 0, fmt.Errorf("address and port are required")
	}
	port, err := strconv.Atoi(strings.TrimSuffix(s[idx+1:], "/"))
	if err != nil {
		return "", 0, fmt.Errorf("invalid port: %w", err)
	}
	return s[:idx], port, nil
}
