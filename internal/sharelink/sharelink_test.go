package sharelink

import (
	"encoding/base64"
	"encoding/json"
	"testing"
)

func TestRegistryConvertVLESS(t *testing.T) {
	r := NewRegistry()

	link := "vless://a2b4c6d8-1234-5678-9abc-def012345678@example.com:443?type=ws&security=tls&sni=example.com&path=%2Fws#my-server"
	result, err := r.Convert(link)
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}

	if !result.Success {
		t.Fatal("expected success envelope")
	}
	if result.Data == nil || len(result.Data.Outbounds) != 1 {
		t.Fatalf("expected exactly one outbound, got %+v", result.Data)
	}

	ob := result.Data.Outbounds[0]
	if ob.Protocol != "vless" {
		t.Errorf("protocol = %q, want vless", ob.Protocol)
	}

	vnext, ok := ob.Settings["vnext"].([]map[string]interface{})
	if !ok || len(vnext) != 1 {
		t.Fatalf("unexpected vnext settings: %+v", ob.Settings["vnext"])
	}
	if vnext[0]["address"] != "example.com" {
		t.Errorf("address = %v, want example.com", vnext[0]["address"])
	}
	if vnext[0]["port"] != 443 {
		t.Errorf("port = %v, want 443", vnext[0]["port"])
	}

	if ob.StreamSettings == nil || ob.StreamSettings.Network != "ws" {
		t.Fatalf("unexpected stream settings: %+v", ob.StreamSettings)
	}
	if ob.StreamSettings.Security != "tls" {
		t.Errorf("security = %q, want tls", ob.StreamSettings.Security)
	}
	if ob.StreamSettings.WSSettings == nil || ob.StreamSettings.WSSettings.Path != "/ws" {
		t.Errorf("unexpected ws settings: %+v", ob.StreamSettings.WSSettings)
	}
	if ob.StreamSettings.TLSSettings == nil || ob.StreamSettings.TLSSettings.Fingerprint != "chrome" {
		t.Error("expected default chrome fingerprint")
	}
}

func TestRegistryConvertVLESSReality(t *testing.T) {
	r := NewRegistry()

	link := "vless://a2b4c6d8-1234-5678-9abc-def012345678@1.2.3.4:8443?type=tcp&security=reality&sni=cdn.example.com&pbk=publickey&sid=ab12&flow=xtls-rprx-vision"
	result, err := r.Convert(link)
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}

	ob := result.Data.Outbounds[0]
	ss := ob.StreamSettings
	if ss.Security != "reality" || ss.RealitySettings == nil {
		t.Fatalf("expected reality settings, got %+v", ss)
	}
	if ss.RealitySettings.PublicKey != "publickey" || ss.RealitySettings.ShortID != "ab12" {
		t.Errorf("unexpected reality settings: %+v", ss.RealitySettings)
	}

	// XTLS vision flows must not be multiplexed.
	if ob.Mux != nil {
		t.Error("expected no mux with a vision flow")
	}
}

func TestRegistryConvertVMess(t *testing.T) {
	r := NewRegistry()

	payload, _ := json.Marshal(map[string]interface{}{
		"v":    "2",
		"ps":   "test",
		"add":  "vm.example.com",
		"port": "10086",
		"id":   "b1946ac9-4933-4e2d-8a3f-0123456789ab",
		"aid":  "0",
		"net":  "ws",
		"path": "/vm",
		"tls":  "tls",
	})
	link := "vmess://" + base64.StdEncoding.EncodeToString(payload)

	result, err := r.Convert(link)
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}

	ob := result.Data.Outbounds[0]
	if ob.Protocol != "vmess" {
		t.Errorf("protocol = %q, want vmess", ob.Protocol)
	}
	vnext := ob.Settings["vnext"].([]map[string]interface{})
	if vnext[0]["address"] != "vm.example.com" {
		t.Errorf("address = %v, want vm.example.com", vnext[0]["address"])
	}
	if vnext[0]["port"] != 10086 {
		t.Errorf("port = %v, want 10086", vnext[0]["port"])
	}
}

func TestRegistryConvertTrojan(t *testing.T) {
	r := NewRegistry()

	result, err := r.Convert("trojan://secretpass@tj.example.com:443?sni=tj.example.com#remark")
	if err != nil {
		t.Fatalf("Convert failed: %v", err)
	}

	ob := result.Data.Outbounds[0]
	if ob.Protocol != "trojan" {
		t.Errorf("protocol = %q, want trojan", ob.Protocol)
	}
	servers := ob.Settings["servers"].([]map[string]interface{})
	if servers[0]["address"] != "tj.example.com" || servers[0]["password"] != "secretpass" {
		t.Errorf("unexpected servers settings: %+v", servers[0])
	}
	// Trojan defaults to TLS when no security parameter is present.
	if ob.StreamSettings == nil || ob.StreamSettings.Security != "tls" {
		t.Errorf("expected TLS by default, got %+v", ob.StreamSettings)
	}
}

func TestRegistryConvertShadowsocks(t *testing.T) {
	r := NewRegistry()

	userinfo := base64.StdEncoding.EncodeToString([]byte("aes-256-gcm:sspass"))
	legacy := base64.StdEncoding.EncodeToString([]byte("chacha20-ietf-poly1305:pw@legacy.example.com:8388"))

	tests := []struct {
		name     string
		link     string
		host     string
		port     int
		method   string
		password string
	}{
		{"modern", "ss://" + userinfo + "@ss.example.com:8388#test", "ss.example.com", 8388, "aes-256-gcm", "sspass"},
		{"legacy", "ss://" + legacy, "legacy.example.com", 8388, "chacha20-ietf-poly1305", "pw"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result, err := r.Convert(tt.link)
			if err != nil {
				t.Fatalf("Convert failed: %v", err)
			}
			ob := result.Data.Outbounds[0]
			if ob.Protocol != "shadowsocks" {
				t.Errorf("protocol = %q, want shadowsocks", ob.Protocol)
			}
			servers := ob.Settings["servers"].([]map[string]interface{})
			if servers[0]["address"] != tt.host {
				t.Errorf("address = %v, want %s", servers[0]["address"], tt.host)
			}
			if servers[0]["port"] != tt.port {
				t.Errorf("port = %v, want %d", servers[0]["port"], tt.port)
			}
			if servers[0]["method"] != tt.method || servers[0]["password"] != tt.password {
				t.Errorf("method/password = %v/%v, want %s/%s",
					servers[0]["method"], servers[0]["password"], tt.method, tt.password)
			}
		})
	}
}

func TestRegistryConvertErrors(t *testing.T) {
	r := NewRegistry()

	tests := []struct {
		name string
		link string
	}{
		{"no scheme", "not-a-link"},
		{"unsupported scheme", "wireguard://peer@example.com:51820"},
		{"vless without uuid", "vless://@example.com:443"},
		{"vless without port", "vless://a2b4c6d8-1234-5678-9abc-def012345678@example.com"},
		{"vmess bad base64", "vmess://!!!not-base64!!!"},
		{"trojan without password", "trojan://@tj.example.com:443"},
		{"ss bad userinfo", "ss://bm9jb2xvbg==@host:8388"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := r.Convert(tt.link); err == nil {
				t.Errorf("Convert(%q) succeeded, want error", tt.link)
			}
		})
	}
}

func TestMuxFor(t *testing.T) {
	if mux := muxFor("ws", ""); mux == nil || !mux.Enabled || mux.Concurrency != 8 {
		t.Errorf("muxFor(ws) = %+v, want enabled with concurrency 8", mux)
	}
	if mux := muxFor("tcp", "xtls-rprx-vision"); mux != nil {
		t.Errorf("muxFor with flow = %+v, want nil", mux)
	}
}
