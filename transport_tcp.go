package main

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"syscall"
)

// printTcp opens a TCP connection to ip:port, writes bytes, and closes the
// connection on every exit path (spec.md §4.A). Printers on 9100-style ports
// are session-scoped: there is no partial-write recovery, callers retry by
// reconnecting.
func printTcp(ip string, port int, data []byte) error {
	addr := net.JoinHostPort(ip, strconv.Itoa(port))

	conn, err := net.DialTimeout("tcp", addr, TCPPrintConnectTimeout)
	if err != nil {
		return classifyDialError(err)
	}
	defer conn.Close()

	if _, err := conn.Write(data); err != nil {
		return fmt.Errorf("%s: %w", ErrIOError, err)
	}

	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.CloseWrite()
	}

	return nil
}

func classifyDialError(err error) error {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%s: %w", ErrConnectTimeout, err)
	}
	if errors.Is(err, syscall.ECONNREFUSED) {
		return fmt.Errorf("%s: %w", ErrConnectRefused, err)
	}
	return fmt.Errorf("%s: %w", ErrIOError, err)
}
