package serialport

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestMergePorts_CombinesSourcesSortedAndDeduped(t *testing.T) {
	devDir := t.TempDir()
	byIDDir := t.TempDir()

	// Device nodes the /dev scan should pick up.
	for _, name := range []string{"ttyUSB1", "ttyUSB0", "ttyACM0", "ttyS0", "null"} {
		if err := os.WriteFile(filepath.Join(devDir, name), nil, 0o600); err != nil {
			t.Fatalf("creating %s: %v", name, err)
		}
	}

	// A by-id symlink resolving to one of the scanned nodes (duplicate)
	// and one resolving to a node the scan ignores.
	if err := os.Symlink(filepath.Join(devDir, "ttyUSB0"),
		filepath.Join(byIDDir, "usb-FTDI_FT232R-if00-port0")); err != nil {
		t.Fatalf("creating symlink: %v", err)
	}
	if err := os.Symlink(filepath.Join(devDir, "ttyS0"),
		filepath.Join(byIDDir, "usb-Builtin-if00")); err != nil {
		t.Fatalf("creating symlink: %v", err)
	}

	enumerated := []string{filepath.Join(devDir, "ttyUSB1"), "/dev/ttyAMA9"}

	got := mergePorts(enumerated, devDir, byIDDir)

	want := []string{
		"/dev/ttyAMA9",
		filepath.Join(devDir, "ttyACM0"),
		filepath.Join(devDir, "ttyS0"),
		filepath.Join(devDir, "ttyUSB0"),
		filepath.Join(devDir, "ttyUSB1"),
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("mergePorts() = %v, want %v", got, want)
	}
}

func TestMergePorts_MissingDirectoriesDegrade(t *testing.T) {
	got := mergePorts([]string{"/dev/ttyUSB7"}, "/nonexistent-dev", "/nonexistent-by-id")

	want := []string{"/dev/ttyUSB7"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("mergePorts() = %v, want %v", got, want)
	}
}

func TestMergePorts_EmptyEverything(t *testing.T) {
	got := mergePorts(nil, "/nonexistent-dev", "/nonexistent-by-id")
	if len(got) != 0 {
		t.Errorf("mergePorts() = %v, want empty", got)
	}
}

func TestListPorts_NeverErrors(t *testing.T) {
	// Result depends on the host; only the contract matters here.
	ports := ListPorts()
	for _, p := range ports {
		if p == "" {
			t.Error("ListPorts() returned an empty entry")
		}
	}
}
