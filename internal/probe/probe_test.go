package probe

import (
	"net"
	"testing"
	"time"
)

func TestPortOpen_ListeningPort(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("starting listener: %v", err)
	}
	defer ln.Close()

	port := ln.Addr().(*net.TCPAddr).Port
	if !PortOpen("127.0.0.1", port, 500*time.Millisecond) {
		t.Error("PortOpen() = false for listening port, want true")
	}
}

func TestPortOpen_ClosedPort(t *testing.T) {
	// Grab a port, then close the listener so nothing is accepting.
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("starting listener: %v", err)
	}
	port := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	if PortOpen("127.0.0.1", port, 500*time.Millisecond) {
		t.Error("PortOpen() = true for closed port, want false")
	}
}

func TestPortOpen_BoundedByTimeout(t *testing.T) {
	// Non-routable address per RFC 5737; the dial should time out.
	start := time.Now()
	got := PortOpen("192.0.2.1", 80, 100*time.Millisecond)
	elapsed := time.Since(start)

	if got {
		t.Error("PortOpen() = true for non-routable address, want false")
	}
	if elapsed > time.Second {
		t.Errorf("PortOpen() took %v, want bounded by timeout", elapsed)
	}
}

func TestPortOpen_ZeroTimeoutUsesDefault(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("starting listener: %v", err)
	}
	defer ln.Close()

	port := ln.Addr().(*net.TCPAddr).Port
	if !PortOpen("127.0.0.1", port, 0) {
		t.Error("PortOpen() with zero timeout = false, want true")
	}
}
