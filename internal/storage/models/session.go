package models

import "time"

// Session represents a tunnel session registration on the host.
//
// Each tunnel profile writes exactly one row; the row is the host-level
// source of truth for whether that profile's tunnel is active. A row with
// a dead PID is treated as stale by readers.
type Session struct {
	Profile     string     `json:"profile"`
	Status      string     `json:"status"` // Disconnected, Connecting, Connected, ...
	PID         int        `json:"pid"`
	VPNMode     string     `json:"vpn_mode"` // Global, NonGlobal
	SocksPort   int        `json:"socks_port"`
	MetricsPort int        `json:"metrics_port"`
	ProxyAddr   string     `json:"proxy_addr,omitempty"`
	ConnectedAt *time.Time `json:"connected_at,omitempty"`
	UpdatedAt   time.Time  `json:"updated_at"`
}
