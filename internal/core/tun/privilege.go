//go:build !windows

package tun

import (
	"errors"
	"os"
)

// ErrNotRoot is returned when TUN setup is attempted without root privileges.
var ErrNotRoot = errors.New(
	"tunnel setup requires elevated privileges (run with sudo)",
)

// checkPrivileges returns an error if not running as root.
func checkPrivileges() error {
	if os.Geteuid() != 0 {
		return ErrNotRoot
	}
	return nil
}
