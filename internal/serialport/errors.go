package serialport

import "errors"

// Sentinel errors for serial session operations.
// Use errors.Is() to check for these in calling code.
var (
	// ErrPortRequired is returned when Open is called without a port name.
	ErrPortRequired = errors.New("serialport: port is required")

	// ErrNotOpen is returned when reading or writing without an open session.
	ErrNotOpen = errors.New("serialport: serial port not open")

	// ErrOddHexDigits is returned when a hex payload has an odd digit count.
	ErrOddHexDigits = errors.New("serialport: hex input must have an even number of digits")

	// ErrInvalidHex is returned when a hex payload contains non-hex characters.
	ErrInvalidHex = errors.New("serialport: invalid hex digit")
)
