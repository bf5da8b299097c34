package tun

import (
	"fmt"
	"os/exec"
	"strings"
)

// detectGateway detects the current default gateway and interface on macOS.
func detectGateway() (gateway, iface string, err error) {
	out, err := exec.Command("route", "-n", "get", "default").Output()
	if err != nil {
		return "", "", fmt.Errorf("failed to detect default gateway: %w", err)
	}

	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "gateway:") {
			gateway = strings.TrimSpace(strings.TrimPrefix(line, "gateway:"))
		}
		if strings.HasPrefix(line, "interface:") {
			iface = strings.TrimSpace(strings.TrimPrefix(line, "interface:"))
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
	if err := run("ifconfig", deviceName, tunLocalAddr, tunRemoteAddr, "up"); err != nil {
		return fmt.Errorf("failed to configure %s: %w", deviceName, err)
	}
	return nil
}

// addBypassRoutes adds host routes for remote server IPs via the original
// gateway so traffic to the proxy server itself doesn't loop through the TUN.
func addBypassRoutes(remoteAddrs []string, gateway string) error {
	for _, addr := range remoteAddrs {
		if err := run("route", "add", "-host", addr, gateway); err != nil {
			return fmt.Errorf("failed to add bypass route for %s: %w", addr, err)
		}
	}
	return nil
}

// removeBypassRoutes removes the host routes added by addBypassRoutes.
func removeBypassRoutes(remoteAddrs []string) error {
	var firstErr error
	for _, addr := range remoteAddrs {
		if err := run("route", "delete", "-host", addr); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to remove bypass route for %s: %w", addr, err)
		}
	}
	return firstErr
}

// setDefaultRouteTUN captures all traffic through the TUN device with /1
// overlay routes more specific than 0/0, for both IPv4 and IPv6. The real
// default route stays in place, making cleanup and crash recovery safer.
func setDefaultRouteTUN(deviceName string) error {
	if err := run("route", "add", "0/1", tunRemoteAddr); err != nil {
		return fmt.Errorf("failed to add 0/1 TUN route: %w", err)
	}
	if err := run("route", "add", "128/1", tunRemoteAddr); err != nil {
		run("route", "delete", "0/1")
		return fmt.Errorf("failed to add 128/1 TUN route: %w", err)
	}
	// IPv6 capture: interface-scoped so no v6 address is needed on the TUN.
	if err := run("route", "add", "-inet6", "::/1", "-interface", deviceName); err != nil {
		run("route", "delete", "128/1")
		run("route", "delete", "0/1")
		return fmt.Errorf("failed to add ::/1 TUN route: %w", err)
	}
	if err := run("route", "add", "-inet6", "8000::/1", "-interface", deviceName); err != nil {
		run("route", "delete", "-inet6", "::/1")
		run("route", "delete", "128/1")
		run("route", "delete", "0/1")
		return fmt.Errorf("failed to add 8000::/1 TUN route: %w", err)
	}
	return nil
}

// restoreDefaultRoute removes the overlay routes and ensures the original
// default route via gateway is present.
func restoreDefaultRoute(gateway string) error {
	// Ignore errors; the routes may not be present after a partial setup.
	run("route", "delete", "-inet6", "8000::/1")
	run("route", "delete", "-inet6", "::/1")
	run("route", "delete", "128/1")
	run("route", "delete", "0/1")
	// If a crash left the real default route missing, restore it.
	run("route", "delete", "default")
	if err := run("route", "add", "default", gateway); err != nil {
		return fmt.Errorf("failed to restore default route via %s: %w", gateway, err)
	}
	return nil
}

// configureDNS sets DNS servers on all active network services.
func configureDNS(servers []string) error {
	services, err := activeNetworkServices()
	if err != nil {
		return err
	}
	for _, svc := range services {
		args := append([]string{"-setdnsservers", svc}, servers...)
		if err := run("networksetup", args...); err != nil {
			return fmt.Errorf("failed to set DNS on %s: %w", svc, err)
		}
	}
	return nil
}

// restoreDNS resets DNS servers to automatic (empty) on all active services.
func restoreDNS() error {
	services, err := activeNetworkServices()
	if err != nil {
		return err
	}
	var firstErr error
	for _, svc := range services {
		if err := run("networksetup", "-setdnsservers", svc, "empty"); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("failed to restore DNS on %s: %w", svc, err)
		}
	}
	return firstErr
}

// activeNetworkServices returns all non-disabled network services.
func activeNetworkServices() ([]string, error) {
	out, err := exec.Command("networksetup", "-listallnetworkservices").Output()
	if err != nil {
		return nil, err
	}

	var services []string
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "An asterisk") || strings.HasPrefix(line, "*") {
			continue
		}
		services = append(services, line)
	}

	if len(services) == 0 {
		return nil, fmt.Errorf("no active network services found")
	}
	return services, nil
}

func run(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%w: %s", err, strings.TrimSpace(string(output)))
	}
	return nil
}
