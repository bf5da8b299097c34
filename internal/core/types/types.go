package types

import "time"

// VPNMode represents the routing mode of the tunnel
type VPNMode string

const (
	VPNModeGlobal    VPNMode = "Global"    // Everything through the proxy
	VPNModeNonGlobal VPNMode = "NonGlobal" // Split routing: local/regional traffic goes direct
)

// Valid reports whether the mode is one of the known values.
func (m VPNMode) Valid() bool {
	return m == VPNModeGlobal || m == VPNModeNonGlobal
}

// Status represents the tunnel session state
type Status string

const (
	StatusDisconnected  Status = "Disconnected"
	StatusConnecting    Status = "Connecting"
	StatusConnected     Status = "Connected"
	StatusDisconnecting Status = "Disconnecting"
	StatusReasserting   Status = "Reasserting" // Transient recoverable network change
	StatusInvalid       Status = "Invalid"     // Terminal; session must be re-provisioned
)

// Active reports whether the status counts as an in-use tunnel for
// conflict-guard purposes.
func (s Status) Active() bool {
	return s == StatusConnecting || s == StatusConnected || s == StatusReasserting
}

// TunnelSession is the orchestrator's view of the current session.
type TunnelSession struct {
	Status      Status
	ConnectedAt *time.Time
}

// SessionSummary describes another managed tunnel configuration on the host,
// as reported by the host VPN-state accessor for conflict detection.
type SessionSummary struct {
	Profile string
	Status  Status
	PID     int
}

// StartOptions carries what the caller hands to the tunnel-start primitive.
type StartOptions struct {
	SocksPort  int
	ConfigPath string
	ConfigBlob []byte
}

// TrafficStats holds byte counters from the diagnostics inbound.
type TrafficStats struct {
	Uplink        uint64 // total bytes sent upstream
	Downlink      uint64 // total bytes received
	UplinkSpeed   uint64 // bytes per second
	DownlinkSpeed uint64 // bytes per second
}

// Preference keys persisted in the settings store.
const (
	PrefSocksPort   = "socks5Port"
	PrefTrafficPort = "trafficPort"
	PrefConfigLink  = "configLink"
	PrefVPNMode     = "VPNMode"
)
