package util

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// FormatAddr returns "host:port".
func FormatAddr(host string, port int) string {
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// HostOf returns the IP (or host) part of a connection address.
func HostOf(addr net.Addr) string {
	if addr == nil {
		return ""
	}
	if tcp, ok := addr.(*net.TCPAddr); ok {
		return tcp.IP.String()
	}
	host, _, err := net.SplitHostPort(addr.String())
	if err != nil {
		return addr.String()
	}
	return host
}

// SplitHostPortDefault parses "host" or "host:port", filling in
// defPort when no port is given.
func SplitHostPortDefault(target string, defPort int) (string, int, error) {
	host, portStr, err := net.SplitHostPort(target)
	if err != nil {
		// No port: the whole string is the host.
		if net.ParseIP(target) != nil || !strings.Contains(target, ":") {
			if target == "" {
				return "", 0, fmt.Errorf("empty address")
			}
			return target, defPort, nil
		}
		return "", 0, fmt.Errorf("invalid address %q: %w", target, err)
	}
	if host == "" {
		return "", 0, fmt.Errorf("invalid address %q: host is required", target)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port < 1 || port > 65535 {
		return "", 0, fmt.Errorf("invalid port %q", portStr)
	}
	return host, port, nil
}

// FindFreePort returns an available TCP port on 127.0.0.1.
func FindFreePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("finding free port: %w", err)
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}
