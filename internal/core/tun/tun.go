// Package tun establishes the virtual network interface that funnels all
// device traffic into the local SOCKS5 listener, using the tun2socks engine
// as the packet-to-socket translator.
package tun

import (
	"fmt"
	"runtime"
	"time"

	"github.com/xjasonlyu/tun2socks/v2/engine"
)

// Up creates the TUN device, starts the translator engine, and configures
// system routes and DNS so all traffic flows through the virtual interface
// into the SOCKS5 proxy.
//
// Setup order matters: the engine must be running before route capture so
// captured packets have somewhere to go, and every step rolls back the
// previous ones on failure.
func Up(opts Options) error {
	opts = opts.withDefaults()

	if err := checkPrivileges(); err != nil {
		return err
	}

	// Detect the current gateway before anything changes.
	gateway, iface, err := detectGateway()
	if err != nil {
		return fmt.Errorf("failed to detect gateway: %w", err)
	}

	// Snapshot TUN interfaces so the new device can be identified after
	// the engine creates it.
	beforeIfaces := listTUNInterfaces()

	deviceHint := "tun0"
	if runtime.GOOS == "darwin" {
		deviceHint = "utun99"
	}

	// Configure and start the translation engine; this creates the TUN
	// device and the packet-to-SOCKS pump in one step.
	key := &engine.Key{
		Proxy:      fmt.Sprintf("socks5://127.0.0.1:%d", opts.SocksPort),
		Device:     fmt.Sprintf("tun://%s", deviceHint),
		MTU:        opts.MTU,
		UDPTimeout: opts.UDPTimeout,
		LogLevel:   opts.LogLevel,
	}
	engine.Insert(key)
	engine.Start()

	// Discover the actual device name; the kernel may take a moment to
	// make the interface visible.
	var deviceName string
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		deviceName = findNewTUNInterface(beforeIfaces)
		if deviceName != "" {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}
	if deviceName == "" {
		engine.Stop()
		return fmt.Errorf("failed to detect TUN device after engine start")
	}

	// Assign the point-to-point address so routes can use the device.
	if err := configureTUNAddress(deviceName); err != nil {
		engine.Stop()
		return fmt.Errorf("failed to configure TUN address: %w", err)
	}

	// Bypass list: proxy server addresses plus the direct DNS servers.
	// DNS goes direct to avoid UDP-over-SOCKS5 reliability issues; the
	// core's TLS/HTTP sniffing still recovers poisoned names.
	bypasses := make([]string, 0, len(opts.RemoteAddrs)+len(opts.DNSServers))
	bypasses = append(bypasses, opts.RemoteAddrs...)
	bypasses = append(bypasses, opts.DNSServers...)

	if err := addBypassRoutes(bypasses, gateway); err != nil {
		engine.Stop()
		return fmt.Errorf("failed to add bypass routes: %w", err)
	}

	// Capture the default route for IPv4 and IPv6 via overlay routes that
	// are more specific than 0/0, so the real default route stays intact,
	// which makes crash recovery safer.
	if err := setDefaultRouteTUN(deviceName); err != nil {
		removeBypassRoutes(bypasses)
		engine.Stop()
		return fmt.Errorf("failed to set TUN default route: %w", err)
	}

	if err := configureDNS(opts.DNSServers); err != nil {
		restoreDefaultRoute(gateway)
		removeBypassRoutes(bypasses)
		engine.Stop()
		return fmt.Errorf("failed to configure DNS: %w", err)
	}

	// Write state LAST so readers polling for it see a fully-built tunnel.
	state := &tunState{
		Gateway:     gateway,
		Interface:   iface,
		RemoteAddrs: bypasses,
		DeviceName:  deviceName,
		DNSServers:  opts.DNSServers,
	}
	if err := saveState(state); err != nil {
		restoreDNS()
		restoreDefaultRoute(gateway)
		removeBypassRoutes(bypasses)
		engine.Stop()
		return fmt.Errorf("failed to save TUN state: %w", err)
	}

	return nil
}

// Down tears down the TUN device and restores original system routes and
// DNS. It is best-effort: a missing state file still stops the engine.
func Down() error {
	state, err := readState()
	if err != nil {
		engine.Stop()
		return nil
	}

	// Restore in reverse setup order.
	restoreDNS()
	if state.Gateway != "" {
		restoreDefaultRoute(state.Gateway)
	}
	if len(state.RemoteAddrs) > 0 {
		removeBypassRoutes(state.RemoteAddrs)
	}

	// Stopping the engine destroys the TUN device.
	engine.Stop()

	removeState()
	return nil
}

// Ready reports whether a fully-configured tunnel state file exists.
// The detached daemon writes it as its final setup step.
func Ready() bool {
	_, err := readState()
	return err == nil
}
