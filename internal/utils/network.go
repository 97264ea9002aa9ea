package utils

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"
)

// --- Network Helpers ---

var ErrNoLocalIP = errors.New("no local IPv4 address found")

func DetectLocalIP() (string, error) {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return "", err
	}
	for _, a := range addrs {
		if ipnet, ok := a.(*net.IPNet); ok && !ipnet.IP.IsLoopback() && ipnet.IP.To4() != nil {
			return ipnet.IP.String(), nil
		}
	}
	return "", ErrNoLocalIP
}

// Reachable reports whether a TCP connect to ip:port succeeds within timeout.
func Reachable(ctx context.Context, ip string, port int, timeout time.Duration) bool {
	d := net.Dialer{Timeout: timeout}
	conn, err := d.DialContext(ctx, "tcp", net.JoinHostPort(ip, fmt.Sprint(port)))
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
