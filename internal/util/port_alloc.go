package util

import (
	"fmt"
	"net"
	"strconv"
	"time"
)

// GetFreeTCPPort asks the kernel for a free open port that is ready to use on
// the specified bind address. Note: this has a small race window between
// closing the listener and another process binding the port.
func GetFreeTCPPort(bindAddr string) (int, error) {
	if bindAddr == "" {
		bindAddr = "127.0.0.1"
	}
	ln, err := net.Listen("tcp", fmt.Sprintf("%s:0", bindAddr))
	if err != nil {
		return 0, err
	}
	defer ln.Close()

	addr := ln.Addr().(*net.TCPAddr)
	if addr.Port == 0 {
		return 0, fmt.Errorf("failed to acquire free port")
	}
	return addr.Port, nil
}

// PortOpen reports whether something accepts TCP connections on host:port.
func PortOpen(host string, port int, timeout time.Duration) bool {
	conn, err := net.DialTimeout("tcp", net.JoinHostPort(host, strconv.Itoa(port)), timeout)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// PortAvailable reports whether port can be bound on host.
func PortAvailable(host string, port int) bool {
	ln, err := net.Listen("tcp", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return false
	}
	_ = ln.Close()
	return true
}
