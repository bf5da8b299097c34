package sharelink

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"tunveil/internal/core/xray"
)

// VMessConverter implements Converter for the VMess protocol
type VMessConverter struct{}

// vmessJSON represents the base64-encoded VMess link payload
type vmessJSON struct {
	V    string      `json:"v"`    // Version
	PS   string      `json:"ps"`   // Remark/Name
	Add  string      `json:"add"`  // Address
	Port interface{} `json:"port"` // Port (can be string or int)
	ID   string      `json:"id"`   // UUID
	AID  interface{} `json:"aid"`  // AlterID (can be string or int)
	Scy  string      `json:"scy"`  // Security
	Net  string      `json:"net"`  // Network type
	Host string      `json:"host"` // Host header
	Path string      `json:"path"` // Path
	TLS  string      `json:"tls"`  // TLS
	SNI  string      `json:"sni"`  // Server name indication
	ALPN string      `json:"alpn"` // ALPN
	FP   string      `json:"fp"`   // Fingerprint
}

func (c *VMessConverter) Protocol() string {
	return "vmess"
}

func (c *VMessConverter) Convert(uri string) (*xray.Outbound, error) {
	// VMess URI format: vmess://base64encodedJSON
	if !strings.HasPrefix(uri, "vmess://") {
		return nil, fmt.Errorf("invalid VMess URI: must start with vmess://")
	}

	decoded, err := decodeBase64(strings.TrimPrefix(uri, "vmess://"))
	if err != nil {
		return nil, fmt.Errorf("failed to decode VMess payload: %w", err)
	}

	var v vmessJSON
	if err := json.Unmarshal(decoded, &v); err != nil {
		return nil, fmt.Errorf("failed to parse VMess JSON: %w", err)
	}

	if v.Add == "" || v.ID == "" {
		return nil, fmt.Errorf("address and UUID are required")
	}

	port, err := toInt(v.Port)
	if err != nil {
		return nil, fmt.Errorf("invalid port: %w", err)
	}

	alterID, _ := toInt(v.AID)
	security := v.Scy
	if security == "" {
		security = "auto"
	}

	network := v.Net
	if network == "" {
		network = "tcp"
	}

	ss := &xray.StreamSettings{
		Network: network,
	}
	if v.TLS == "tls" {
		ss.Security = "tls"
		ss.TLSSettings = &xray.TLSSettings{
			ServerName:  v.SNI,
			Fingerprint: fingerprintOrDefault(v.FP),
		}
		if v.ALPN != "" {
			ss.TLSSettings.ALPN = strings.Split(v.ALPN, ",")
		}
	}
	switch network {
	case "ws":
		ws := &xray.WSSettings{Path: v.Path}
		if v.Host != "" {
			ws.Headers = map[string]string{"Host": v.Host}
		}
		ss.WSSettings = ws
	case "grpc":
		ss.GRPCSettings = &xray.GRPCSettings{ServiceName: v.Path}
	case "http", "h2":
		hs := &xray.HTTPSettings{Path: v.Path}
		if v.Host != "" {
			hs.Host = []string{v.Host}
		}
		ss.HTTPSettings = hs
	}

	outbound := &xray.Outbound{
		Protocol: "vmess",
		Settings: map[string]interface{}{
			"vnext": []map[string]interface{}{
				{
					"address": v.Add,
					"port":    port,
					"users": []map[string]interface{}{
						{
							"id":       v.ID,
							"alterId":  alterID,
							"security": security,
						},
					},
				},
			},
		},
		StreamSettings: ss,
		Mux:            muxFor(network, ""),
	}

	return outbound, nil
}

// decodeBase64 tries the encoding variants found in the wild.
func decodeBase64(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	for _, enc := range []*base64.Encoding{
		base64.StdEncoding,
		base64.RawStdEncoding,
		base64.URLEncoding,
		base64.RawURLEncoding,
	} {
		if decoded, err := enc.DecodeString(s); err == nil {
			return decoded, nil
		}
	}
	return nil, fmt.Errorf("not valid base64")
}

// toInt handles fields that appear as either a JSON number or string.
func toInt(v interface{}) (int, error) {
	switch n := v.(type) {
	case float64:
		return int(n), nil
	case string:
		return strconv.Atoi(n)
	case nil:
		return 0, nil
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}
}
