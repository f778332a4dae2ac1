package serialport

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	bugst "go.bug.st/serial"
)

// ListPorts enumerates candidate serial ports.
//
// Three sources are merged: the driver's own enumeration, a scan of
// /dev for ttyUSB*/ttyACM* nodes, and resolved /dev/serial/by-id
// symlinks. USB adapters that one source misses are often visible to
// another, so failures in any source just degrade to the others; the
// result is sorted and deduplicated and never an error.
func ListPorts() []string {
	enumerated, err := bugst.GetPortsList()
	if err != nil {
		enumerated = nil
	}
	return mergePorts(enumerated, "/dev", "/dev/serial/by-id")
}

// mergePorts combines the port sources. Split out so tests can point the
// scans at temp directories.
func mergePorts(enumerated []string, devDir, byIDDir string) []string {
	set := make(map[string]struct{})
	add := func(p string) {
		if p != "" {
			set[p] = struct{}{}
		}
	}

	for _, p := range enumerated {
		add(p)
	}

	if entries, err := os.ReadDir(devDir); err == nil {
		for _, entry := range entries {
			name := entry.Name()
			if strings.HasPrefix(name, "ttyUSB") || strings.HasPrefix(name, "ttyACM") {
				add(filepath.Join(devDir, name))
			}
		}
	}

	if links, err := os.ReadDir(byIDDir); err == nil {
		for _, link := range links {
			target, err := filepath.EvalSymlinks(filepath.Join(byIDDir, link.Name()))
			if err != nil {
				continue
			}
			add(target)
		}
	}

	ports := make([]string, 0, len(set))
	for p := range set {
		ports = append(ports, p)
	}
	sort.Strings(ports)
	return ports
}
