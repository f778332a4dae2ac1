package serialport

import (
	"bytes"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

// fakeDevice is an in-memory Device for manager tests.
type fakeDevice struct {
	mu       sync.Mutex
	incoming []byte
	written  []byte
	drained  int
	closed   bool
}

func (d *fakeDevice) Read(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.incoming) == 0 {
		// Timeout with nothing received: the driver reports (0, nil).
		return 0, nil
	}
	n := copy(p, d.incoming)
	d.incoming = d.incoming[n:]
	return n, nil
}

func (d *fakeDevice) Write(p []byte) (int, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.written = append(d.written, p...)
	return len(p), nil
}

func (d *fakeDevice) Drain() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.drained++
	return nil
}

func (d *fakeDevice) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	return nil
}

func (d *fakeDevice) Descriptor() int64 { return 42 }

// newTestManager returns a manager whose opener hands out fresh fake
// devices, recording each one.
func newTestManager() (*Manager, *[]*fakeDevice) {
	var devices []*fakeDevice
	m := NewManager()
	m.SetOpener(func(cfg Config, timeout time.Duration) (Device, error) {
		dev := &fakeDevice{}
		devices = append(devices, dev)
		return dev, nil
	})
	return m, &devices
}

func baseConfig() Config {
	return Config{
		Port:          "/dev/ttyUSB0",
		Baud:          115200,
		Parity:        "None",
		StopBits:      "1",
		DataBits:      8,
		ReadTimeoutMs: 200,
	}
}

func TestEffectiveTimeout(t *testing.T) {
	tests := []struct {
		name string
		read int
		wrt  int
		want time.Duration
	}{
		{"read larger", 500, 200, 500 * time.Millisecond},
		{"write larger", 200, 500, 500 * time.Millisecond},
		{"both below floor", 10, 20, 100 * time.Millisecond},
		{"both zero", 0, 0, 100 * time.Millisecond},
		{"equal above floor", 300, 300, 300 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{ReadTimeoutMs: tt.read, WriteTimeoutMs: tt.wrt}
			if got := effectiveTimeout(cfg); got != tt.want {
				t.Errorf("effectiveTimeout(read=%d, write=%d) = %v, want %v",
					tt.read, tt.wrt, got, tt.want)
			}
		})
	}
}

func TestOpen_ReturnsStatus(t *testing.T) {
	m, _ := newTestManager()

	status, err := m.Open(baseConfig())
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}

	if status.Port != "/dev/ttyUSB0" {
		t.Errorf("Status.Port = %q, want %q", status.Port, "/dev/ttyUSB0")
	}
	if status.Baud != 115200 {
		t.Errorf("Status.Baud = %d, want 115200", status.Baud)
	}
	if status.TimeoutMs != 200 {
		t.Errorf("Status.TimeoutMs = %d, want 200", status.TimeoutMs)
	}
	if status.Descriptor != 42 {
		t.Errorf("Status.Descriptor = %d, want 42", status.Descriptor)
	}
	if !m.IsOpen() {
		t.Error("IsOpen() = false after Open()")
	}
}

func TestOpen_PortRequired(t *testing.T) {
	m, _ := newTestManager()

	cfg := baseConfig()
	cfg.Port = ""
	_, err := m.Open(cfg)
	if !errors.Is(err, ErrPortRequired) {
		t.Errorf("Open() error = %v, want ErrPortRequired", err)
	}
}

func TestOpen_InvalidSettingsDoNotDisturbSession(t *testing.T) {
	m, devices := newTestManager()

	if _, err := m.Open(baseConfig()); err != nil {
		t.Fatalf("Open() error: %v", err)
	}

	bad := []Config{
		func() Config { c := baseConfig(); c.Parity = "Mark"; return c }(),
		func() Config { c := baseConfig(); c.StopBits = "1.5"; return c }(),
		func() Config { c := baseConfig(); c.DataBits = 9; return c }(),
		func() Config { c := baseConfig(); c.DataBits = 4; return c }(),
	}

	for _, cfg := range bad {
		if _, err := m.Open(cfg); err == nil {
			t.Errorf("Open(%+v) expected error, got nil", cfg)
		}
	}

	// The original session must still be open and untouched.
	if !m.IsOpen() {
		t.Error("IsOpen() = false after rejected configs")
	}
	if (*devices)[0].closed {
		t.Error("original device was closed by invalid Open()")
	}
	if len(*devices) != 1 {
		t.Errorf("opener called %d times, want 1", len(*devices))
	}
}

func TestOpen_ForceClosesPrevious(t *testing.T) {
	m, devices := newTestManager()

	if _, err := m.Open(baseConfig()); err != nil {
		t.Fatalf("first Open() error: %v", err)
	}

	cfg := baseConfig()
	cfg.Port = "/dev/ttyUSB1"
	if _, err := m.Open(cfg); err != nil {
		t.Fatalf("second Open() error: %v", err)
	}

	if len(*devices) != 2 {
		t.Fatalf("opener called %d times, want 2", len(*devices))
	}
	if !(*devices)[0].closed {
		t.Error("first device not closed by second Open()")
	}
	if (*devices)[1].closed {
		t.Error("second device unexpectedly closed")
	}
}

func TestOpen_DefaultsApplied(t *testing.T) {
	var captured Config
	m := NewManager()
	m.SetOpener(func(cfg Config, timeout time.Duration) (Device, error) {
		captured = cfg
		return &fakeDevice{}, nil
	})

	if _, err := m.Open(Config{Port: "/dev/ttyUSB0"}); err != nil {
		t.Fatalf("Open() error: %v", err)
	}

	if captured.Baud != 9600 {
		t.Errorf("default Baud = %d, want 9600", captured.Baud)
	}
	if captured.Parity != "None" {
		t.Errorf("default Parity = %q, want None", captured.Parity)
	}
	if captured.StopBits != "1" {
		t.Errorf("default StopBits = %q, want 1", captured.StopBits)
	}
	if captured.DataBits != 8 {
		t.Errorf("default DataBits = %d, want 8", captured.DataBits)
	}
}

func TestClose_NoopWhenNotOpen(t *testing.T) {
	m, _ := newTestManager()

	if err := m.Close(); err != nil {
		t.Errorf("Close() on closed manager error = %v, want nil", err)
	}
}

func TestStatus_NotOpen(t *testing.T) {
	m, _ := newTestManager()

	if _, err := m.Status(); !errors.Is(err, ErrNotOpen) {
		t.Errorf("Status() error = %v, want ErrNotOpen", err)
	}
}

func TestWrite_NotOpen(t *testing.T) {
	m, _ := newTestManager()

	if _, err := m.Write("hello", "text"); !errors.Is(err, ErrNotOpen) {
		t.Errorf("Write() error = %v, want ErrNotOpen", err)
	}
}

func TestWrite_Text(t *testing.T) {
	m, devices := newTestManager()
	if _, err := m.Open(baseConfig()); err != nil {
		t.Fatalf("Open() error: %v", err)
	}

	n, err := m.Write("hello", "text")
	if err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	if n != 5 {
		t.Errorf("Write() = %d bytes, want 5", n)
	}

	dev := (*devices)[0]
	if !bytes.Equal(dev.written, []byte("hello")) {
		t.Errorf("device received %v, want %v", dev.written, []byte("hello"))
	}
	if dev.drained != 1 {
		t.Errorf("Drain() called %d times, want 1", dev.drained)
	}
}

func TestWrite_Hex(t *testing.T) {
	m, devices := newTestManager()
	if _, err := m.Open(baseConfig()); err != nil {
		t.Fatalf("Open() error: %v", err)
	}

	n, err := m.Write("DE AD be ef", "hex")
	if err != nil {
		t.Fatalf("Write() error: %v", err)
	}
	if n != 4 {
		t.Errorf("Write() = %d bytes, want 4", n)
	}

	want := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	if !bytes.Equal((*devices)[0].written, want) {
		t.Errorf("device received %v, want %v", (*devices)[0].written, want)
	}
}

func TestWrite_OddHexRejectedBeforeDevice(t *testing.T) {
	m, devices := newTestManager()
	if _, err := m.Open(baseConfig()); err != nil {
		t.Fatalf("Open() error: %v", err)
	}

	_, err := m.Write("DEA", "hex")
	if !errors.Is(err, ErrOddHexDigits) {
		t.Fatalf("Write() error = %v, want ErrOddHexDigits", err)
	}

	dev := (*devices)[0]
	if len(dev.written) != 0 {
		t.Errorf("device received %d bytes for rejected payload, want 0", len(dev.written))
	}
	if dev.drained != 0 {
		t.Error("Drain() called for rejected payload")
	}
}

func TestRead_NotOpen(t *testing.T) {
	m, _ := newTestManager()

	if _, err := m.Read(16); !errors.Is(err, ErrNotOpen) {
		t.Errorf("Read() error = %v, want ErrNotOpen", err)
	}
}

func TestRead_TimeoutYieldsEmptyResult(t *testing.T) {
	m, _ := newTestManager()
	if _, err := m.Open(baseConfig()); err != nil {
		t.Fatalf("Open() error: %v", err)
	}

	result, err := m.Read(64)
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	if result.Len != 0 || result.Text != "" || result.Hex != "" {
		t.Errorf("Read() on timeout = %+v, want empty result", result)
	}
}

func TestRead_RendersTextAndHex(t *testing.T) {
	m, devices := newTestManager()
	if _, err := m.Open(baseConfig()); err != nil {
		t.Fatalf("Open() error: %v", err)
	}

	(*devices)[0].incoming = []byte("OK\r\n")

	result, err := m.Read(64)
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	if result.Len != 4 {
		t.Errorf("Read().Len = %d, want 4", result.Len)
	}
	if result.Text != "OK\r\n" {
		t.Errorf("Read().Text = %q, want %q", result.Text, "OK\r\n")
	}
	if result.Hex != "4F 4B 0D 0A" {
		t.Errorf("Read().Hex = %q, want %q", result.Hex, "4F 4B 0D 0A")
	}
}

func TestRead_LossyUTF8(t *testing.T) {
	m, devices := newTestManager()
	if _, err := m.Open(baseConfig()); err != nil {
		t.Fatalf("Open() error: %v", err)
	}

	// 0xFF is not valid UTF-8; it must be replaced, not dropped silently.
	(*devices)[0].incoming = []byte{0xFF, 'A'}

	result, err := m.Read(64)
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	if result.Len != 2 {
		t.Errorf("Read().Len = %d, want 2", result.Len)
	}
	if !strings.Contains(result.Text, "�") {
		t.Errorf("Read().Text = %q, want replacement character", result.Text)
	}
	if result.Hex != "FF 41" {
		t.Errorf("Read().Hex = %q, want %q", result.Hex, "FF 41")
	}
}

func TestRead_RespectsMaxBytes(t *testing.T) {
	m, devices := newTestManager()
	if _, err := m.Open(baseConfig()); err != nil {
		t.Fatalf("Open() error: %v", err)
	}

	(*devices)[0].incoming = []byte("0123456789")

	result, err := m.Read(4)
	if err != nil {
		t.Fatalf("Read() error: %v", err)
	}
	if result.Len != 4 {
		t.Errorf("Read(4).Len = %d, want 4", result.Len)
	}
	if result.Text != "0123" {
		t.Errorf("Read(4).Text = %q, want %q", result.Text, "0123")
	}
}

func TestParseParity(t *testing.T) {
	for _, valid := range []string{"None", "Even", "Odd", ""} {
		if _, err := parseParity(valid); err != nil {
			t.Errorf("parseParity(%q) error: %v", valid, err)
		}
	}
	for _, invalid := range []string{"Mark", "Space", "none", "EVEN"} {
		if _, err := parseParity(invalid); err == nil {
			t.Errorf("parseParity(%q) expected error, got nil", invalid)
		}
	}
}

func TestParseStopBits(t *testing.T) {
	for _, valid := range []string{"1", "2", ""} {
		if _, err := parseStopBits(valid); err != nil {
			t.Errorf("parseStopBits(%q) error: %v", valid, err)
		}
	}
	for _, invalid := range []string{"0", "3", "1.5"} {
		if _, err := parseStopBits(invalid); err == nil {
			t.Errorf("parseStopBits(%q) expected error, got nil", invalid)
		}
	}
}
