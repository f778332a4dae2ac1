package serialport

import (
	"fmt"
	"os"
	"strconv"
	"time"

	bugst "go.bug.st/serial"
)

// Device is the minimal surface the manager needs from an open serial
// handle. The production implementation wraps go.bug.st/serial; tests
// substitute in-memory fakes via the Opener hook.
type Device interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)

	// Drain blocks until buffered output has been transmitted.
	Drain() error

	Close() error

	// Descriptor returns the OS-level handle for diagnostics,
	// or -1 when unknown.
	Descriptor() int64
}

// Opener creates a Device for the given configuration. The timeout is
// the effective session timeout already derived from the config.
type Opener func(cfg Config, timeout time.Duration) (Device, error)

// openDevice is the production Opener backed by go.bug.st/serial.
func openDevice(cfg Config, timeout time.Duration) (Device, error) {
	parity, err := parseParity(cfg.Parity)
	if err != nil {
		return nil, err
	}
	stopBits, err := parseStopBits(cfg.StopBits)
	if err != nil {
		return nil, err
	}
	if err := validateDataBits(cfg.DataBits); err != nil {
		return nil, err
	}

	mode := &bugst.Mode{
		BaudRate: cfg.Baud,
		DataBits: cfg.DataBits,
		Parity:   parity,
		StopBits: stopBits,
	}

	port, err := bugst.Open(cfg.Port, mode)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", cfg.Port, err)
	}

	// A read that sees no data within the timeout returns (0, nil),
	// which the manager reports as an empty ReadResult.
	if err := port.SetReadTimeout(timeout); err != nil {
		port.Close() //nolint:errcheck // Best effort cleanup on error path
		return nil, fmt.Errorf("setting read timeout: %w", err)
	}

	return &bugstDevice{
		port: port,
		fd:   lookupDescriptor(cfg.Port),
	}, nil
}

// bugstDevice adapts a go.bug.st/serial port to the Device interface.
type bugstDevice struct {
	port bugst.Port
	fd   int64
}

func (d *bugstDevice) Read(p []byte) (int, error)  { return d.port.Read(p) }
func (d *bugstDevice) Write(p []byte) (int, error) { return d.port.Write(p) }
func (d *bugstDevice) Drain() error                { return d.port.Drain() }
func (d *bugstDevice) Close() error                { return d.port.Close() }
func (d *bugstDevice) Descriptor() int64           { return d.fd }

// lookupDescriptor scans /proc/self/fd for a symlink pointing at the
// device path. Diagnostic only; returns -1 when it can't be determined
// (non-Linux, procfs unavailable, symlink race).
func lookupDescriptor(devicePath string) int64 {
	entries, err := os.ReadDir("/proc/self/fd")
	if err != nil {
		return -1
	}
	for _, entry := range entries {
		target, err := os.Readlink("/proc/self/fd/" + entry.Name())
		if err != nil {
			continue
		}
		if target != devicePath {
			continue
		}
		fd, err := strconv.ParseInt(entry.Name(), 10, 64)
		if err != nil {
			continue
		}
		return fd
	}
	return -1
}

// parseParity maps the wire-level parity name onto the driver constant.
func parseParity(parity string) (bugst.Parity, error) {
	switch parity {
	case "None", "":
		return bugst.NoParity, nil
	case "Even":
		return bugst.EvenParity, nil
	case "Odd":
		return bugst.OddParity, nil
	default:
		return bugst.NoParity, fmt.Errorf("unsupported parity: %s", parity)
	}
}

// parseStopBits maps the stop bit count onto the driver constant.
func parseStopBits(stopBits string) (bugst.StopBits, error) {
	switch stopBits {
	case "1", "":
		return bugst.OneStopBit, nil
	case "2":
		return bugst.TwoStopBits, nil
	default:
		return bugst.OneStopBit, fmt.Errorf("unsupported stop bits: %s", stopBits)
	}
}

// validateDataBits accepts the word sizes RS-485 transceivers support.
func validateDataBits(dataBits int) error {
	if dataBits < 5 || dataBits > 8 {
		return fmt.Errorf("unsupported data bits: %d", dataBits)
	}
	return nil
}
