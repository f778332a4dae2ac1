// Package probe provides bounded-timeout TCP reachability checks.
//
// The supervisor watchdog uses these probes to decide whether the backend
// process is healthy: a successful connect to its listen port counts as
// alive, anything else counts as a failed probe. A probe never blocks
// longer than its timeout, so the watchdog loop keeps its cadence even
// when the target host is blackholing packets.
package probe

import (
	"net"
	"strconv"
	"time"
)

// DefaultTimeout bounds a single probe when callers pass zero.
// Local health endpoints answer in single-digit milliseconds; anything
// slower than this is treated as down.
const DefaultTimeout = 150 * time.Millisecond

// PortOpen reports whether a TCP connection to host:port can be
// established within timeout. The connection is closed immediately after
// the handshake; no payload is exchanged.
func PortOpen(host string, port int, timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return false
	}
	conn.Close() //nolint:errcheck // Probe connection, nothing to flush
	return true
}
