package tun

import (
	"net"
	"strings"
)

// listTUNInterfaces returns the names of all TUN-style interfaces present.
func listTUNInterfaces() map[string]bool {
	names := make(map[string]bool)
	ifaces, err := net.Interfaces()
	if err != nil {
		return names
	}
	for _, iface := range ifaces {
		if isTUNName(iface.Name) {
			names[iface.Name] = true
		}
	}
	return names
}

// findNewTUNInterface returns the first TUN interface not present in the
// before snapshot, or "" if none appeared yet.
func findNewTUNInterface(before map[string]bool) string {
	ifaces, err := net.Interfaces()
	if err != nil {
		return ""
	}
	for _, iface := range ifaces {
		if isTUNName(iface.Name) && !before[iface.Name] {
			return iface.Name
		}
	}
	return ""
}

func isTUNName(name string) bool {
	return strings.HasPrefix(name, "tun") || strings.HasPrefix(name, "utun")
}
