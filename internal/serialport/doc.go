// Package serialport manages the RS-485 adapter session.
//
// A Manager holds at most one open device. Opening a port force-closes
// the previous session (after validating the new config, so bad input
// never disturbs a working session), reads and writes go through a
// single mutex, and payloads move across the API boundary as text or
// whitespace-tolerant hex.
//
// The actual driver is go.bug.st/serial, hidden behind the small Device
// interface and the Opener hook so tests can run against in-memory
// fakes. Port discovery (ListPorts) merges driver enumeration with a
// /dev scan and /dev/serial/by-id symlink resolution, which together
// catch USB adapters in whatever state udev left them.
package serialport
