package tun

import (
	"fmt"
	"os"
	"os/exec"
	"strings"
)

const (
	resolvConfPath   = "/etc/resolv.conf"
	resolvBackupPath = "/etc/resolv.conf.tunveil.bak"
)

// detectGateway detects the current default gateway and interface on Linux.
func detectGateway() (gateway, iface string, err error) {
	out, err := exec.Command("ip", "route", "show", "default").Output()
	if err != nil {
		return "", "", fmt.Errorf("failed to detect default gateway: %w", err)
	}

	// "default via 192.168.1.1 dev eth0 proto dhcp"
	fields := strings.Fields(strings.TrimSpace(string(out)))
	for i := 0; i < len(fields)-1; i++ {
		switch fields[i] {
		case "via":
			gateway = fields[i+1]
		case "dev":
			iface = fields[i+1]
		}
	}

	if gateway == "" || iface == "" {
		return "", "", fmt.Errorf("could not parse default gateway (gateway=%q, interface=%q)", gateway, iface)
	}
	return gateway, iface, nil
}

// configureTUNAddress assigns the point-to-point addresses to the TUN device.
// tun2socks creates the device but doesn't configure an IP on it; without
// this, routes pointing at the TUN have no next hop.
func configureTUNAddress(deviceName string) error {
	if err := run("ip", "addr", "add", tunLocalAddr+"/30", "dev", deviceName); err != nil {
		return fmt.Errorf("failed to configure %s: %w", deviceName, err)
	}
	if err := run("ip", "link", "set", deviceName, "up"); err != nil {
		return fmt.Errorf("failed to bring up %s: %w", deviceName, err)
	}
	return nil
}

// addBypassRoutes adds host routes for remote server IPs via the original
// gateway so traffic to the proxy server itself doesn't loop through the TUN.
func addBypassRoutes(remoteAddrs []string, gateway string) error {
	for _, addr := range remoteAddrs {
		if err := run("ip", "route", "add", addr, "via", gateway); err != nil {
			return fmt.Errorf("failed to add bypass route for %s: %w", addr, err)
		}
	}
	return nil
}

// removeBypassRoutes removes the host routes added by addBypassRoutes.
func removeBypassRoutes(remoteAddrs []string) error {
	var firstErr error
	for _, addr := range remoteAddrs {
		if err := run("ip", "route", "del", addr); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to remove bypass route for %s: %w", addr, err)
		}
	}
	return firstErr
}

// setDefaultRouteTUN captures all traffic through the TUN device with /1
// overlay routes more specific than 0/0, for both IPv4 and IPv6. The real
// default route stays in place, making cleanup and crash recovery safer.
func setDefaultRouteTUN(deviceName string) error {
	if err := run("ip", "route", "add", "0.0.0.0/1", "dev", deviceName); err != nil {
		return fmt.Errorf("failed to add 0.0.0.0/1 TUN route: %w", err)
	}
	if err := run("ip", "route", "add", "128.0.0.0/1", "dev", deviceName); err != nil {
		run("ip", "route", "del", "0.0.0.0/1")
		return fmt.Errorf("failed to add 128.0.0.0/1 TUN route: %w", err)
	}
	if err := run("ip", "-6", "route", "add", "::/1", "dev", deviceName); err != nil {
		run("ip", "route", "del", "128.0.0.0/1")
		run("ip", "route", "del", "0.0.0.0/1")
		return fmt.Errorf("failed to add ::/1 TUN route: %w", err)
	}
	if err := run("ip", "-6", "route", "add", "8000::/1", "dev", deviceName); err != nil {
		run("ip", "-6", "route", "del", "::/1")
		run("ip", "route", "del", "128.0.0.0/1")
		run("ip", "route", "del", "0.0.0.0/1")
		return fmt.Errorf("failed to add 8000::/1 TUN route: %w", err)
	}
	return nil
}

// restoreDefaultRoute removes the overlay routes and ensures the original
// default route via gateway is present.
func restoreDefaultRoute(gateway string) error {
	// Ignore errors; the routes may not be present after a partial setup.
	run("ip", "-6", "route", "del", "8000::/1")
	run("ip", "-6", "route", "del", "::/1")
	run("ip", "route", "del", "128.0.0.0/1")
	run("ip", "route", "del", "0.0.0.0/1")
	if err := run("ip", "route", "replace", "default", "via", gateway); err != nil {
		return fmt.Errorf("failed to restore default route via %s: %w", gateway, err)
	}
	return nil
}

// configureDNS rewrites resolv.conf with the tunnel DNS servers, keeping a
// backup of the original for restoreDNS.
func configureDNS(servers []string) error {
	if _, err := os.Stat(resolvBackupPath); os.IsNotExist(err) {
		orig, err := os.ReadFile(resolvConfPath)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", resolvConfPath, err)
		}
		if err := os.WriteFile(resolvBackupPath, orig, 0644); err != nil {
			return fmt.Errorf("failed to back up %s: %w", resolvConfPath, err)
		}
	}

	var sb strings.Builder
	sb.WriteString("# generated by tunveil\n")
	for _, s := range servers {
		fmt.Fprintf(&sb, "nameserver %s\n", s)
	}
	if err := os.WriteFile(resolvConfPath, []byte(sb.String()), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", resolvConfPath, err)
	}
	return nil
}

// restoreDNS puts back the resolv.conf saved by configureDNS.
func restoreDNS() error {
	orig, err := os.ReadFile(resolvBackupPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read DNS backup: %w", err)
	}
	if err := os.WriteFile(resolvConfPath, orig, 0644); err != nil {
		return fmt.Errorf("failed to restore %s: %w", resolvConfPath, err)
	}
	return os.Remove(resolvBackupPath)
}

func run(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}
