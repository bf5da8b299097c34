package core

import (
	"fmt"
	"net"

	"tunveil/pkg/errors"
)

// PortAllocator hands out and validates local TCP ports for the SOCKS
// inbound and the metrics inbound.
type PortAllocator struct{}

// FreePort asks the kernel for an unused port on the loopback interface.
func (PortAllocator) FreePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("%w: %v", errors.ErrPortUnavailable, err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// CheckPort verifies that port can be bound on loopback right now.
func (PortAllocator) CheckPort(port int) error {
	if port <= 0 || port > 65535 {
		return fmt.Errorf("%w: port %d out of range", errors.ErrPortUnavailable, port)
	}
	l, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", port))
	if err != nil {
		return fmt.Errorf("%w: port %d: %v", errors.ErrPortUnavailable, port, err)
	}
	return l.Close()
}
