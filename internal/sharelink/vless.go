package sharelink

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"tunveil/internal/core/xray"
)

// VLESSConverter implements Converter for the VLESS protocol
type VLESSConverter struct{}

func (c *VLESSConverter) Protocol() string {
	return "vless"
}

func (c *VLESSConverter) Convert(uri string) (*xray.Outbound, error) {
	// VLESS URI format: vless://uuid@address:port?parameters#remark
	if !strings.HasPrefix(uri, "vless://") {
		return nil, fmt.Errorf("invalid VLESS URI: must start with vless://")
	}

	u, err := url.Parse(uri)
	if err != nil {
		return nil, fmt.Errorf("failed to parse URI: %w", err)
	}

	uuid := u.User.Username()
	if uuid == "" {
		return nil, fmt.Errorf("UUID is required")
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
	flow := query.Get("flow")

	user := map[string]interface{}{
		"id":         uuid,
		"encryption": "none",
	}
	if flow != "" {
		user["flow"] = flow
	}

	outbound := &xray.Outbound{
		Protocol: "vless",
		Settings: map[string]interface{}{
			"vnext": []map[string]interface{}{
				{
					"address": host,
					"port":    port,
					"users":   []map[string]interface{}{user},
				},
			},
		},
		StreamSettings: streamFromQuery(query),
		Mux:            muxFor(query.Get("type"), flow),
	}

	return outbound, nil
}
