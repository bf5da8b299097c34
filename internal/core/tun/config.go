package tun

import "time"

// Options is the keyed configuration for the SOCKS-translation engine and
// the virtual interface built around it.
type Options struct {
	SocksPort  int           // Local SOCKS5 listener the translator feeds
	MTU        int           // Defaults to DefaultMTU when zero
	UDPTimeout time.Duration // UDP session timeout inside the translator
	LogLevel   string        // Translator verbosity; defaults to "silent"

	// RemoteAddrs are the proxy server IPs/hosts that must bypass the TUN
	// to avoid routing loops.
	RemoteAddrs []string

	// DNSServers become the system resolvers while the tunnel is up. They
	// must match the DNS policy baked into the runtime configuration.
	DNSServers []string
}

// DefaultMTU is the default MTU for the TUN device.
const DefaultMTU = 9000

// tun2socks uses 198.18.0.0/15 (benchmark range, never routed publicly)
// for its virtual network.
const (
	tunLocalAddr  = "198.18.0.1" // local point-to-point address
	tunRemoteAddr = "198.18.0.2" // private remote address / next hop
)

// withDefaults fills in zero-valued fields.
func (o Options) withDefaults() Options {
	if o.MTU <= 0 {
		o.MTU = DefaultMTU
	}
	if o.UDPTimeout <= 0 {
		o.UDPTimeout = 60 * time.Second
	}
	if o.LogLevel == "" {
		o.LogLevel = "silent"
	}
	if len(o.DNSServers) == 0 {
		o.DNSServers = []string{"8.8.8.8", "1.1.1.1"}
	}
	return o
}
