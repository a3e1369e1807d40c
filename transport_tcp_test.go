package main

import (
	"errors"
	"net"
	"strconv"
	"strings"
	"testing"
)

func TestClassifyDialErrorConnectionRefused(t *testing.T) {
	// Dialing a closed local port reliably yields ECONNREFUSED.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to reserve a port: %v", err)
	}
	addr := ln.Addr().(*net.TCPAddr)
	ln.Close()

	_, dialErr := net.Dial("tcp", net.JoinHostPort("127.0.0.1", strconv.Itoa(addr.Port)))
	if dialErr == nil {
		t.Fatalf("expected dial to a closed port to fail")
	}

	classified := classifyDialError(dialErr)
	if !strings.HasPrefix(classified.Error(), ErrConnectRefused) {
		t.Errorf("classifyDialError(%v) = %v, want prefix %s", dialErr, classified, ErrConnectRefused)
	}
}

func TestClassifyDialErrorFallsBackToIOError(t *testing.T) {
	generic := errors.New("boom")
	classified := classifyDialError(generic)
	if !strings.HasPrefix(classified.Error(), ErrIOError) {
		t.Errorf("classifyDialError(generic) = %v, want prefix %s", classified, ErrIOError)
	}
}

func TestPrintTcpWritesPayload(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to listen: %v", err)
	}
	defer ln.Close()

	received := make(chan []byte, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 64)
		n, _ := conn.Read(buf)
		received <- buf[:n]
	}()

	addr := ln.Addr().(*net.TCPAddr)
	if err := printTcp("127.0.0.1", addr.Port, []byte("hello printer")); err != nil {
		t.Fatalf("printTcp failed: %v", err)
	}

	got := <-received
	if string(got) != "hello printer" {
		t.Errorf("server received %q, want %q", got, "hello printer")
	}
}
