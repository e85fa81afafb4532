package device

import (
	"fmt"
	"sort"
	"strings"

	"go.bug.st/serial/enumerator"
)

// PortInfo describes a serial port the operator may connect to
type PortInfo struct {
	Name    string
	IsUSB   bool
	VID     string
	PID     string
	Serial  string
	Product string
}

// Likely reports whether the port sits behind a known embosser bridge
func (p PortInfo) Likely() bool {
	if !p.IsUSB {
		return false
	}
	for id := range knownBridges {
		if strings.EqualFold(p.VID, id[0].String()) && strings.EqualFold(p.PID, id[1].String()) {
			return true
		}
	}
	return false
}

// ListPorts returns the serial ports present on this host
func ListPorts() ([]PortInfo, error) {
	details, err := enumerator.GetDetailedPortsList()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}
	ports := make([]PortInfo, 0, len(details))
	for _, d := range details {
		ports = append(ports, PortInfo{
			Name:    d.Name,
			IsUSB:   d.IsUSB,
			VID:     d.VID,
			PID:     d.PID,
			Serial:  d.SerialNumber,
			Product: d.Product,
		})
	}
	return ports, nil
}

// Annotate fills missing product names from bridge descriptors matched by
// VID, PID and serial number, then orders likely embosser ports first
func Annotate(ports []PortInfo, bridges []Bridge) []PortInfo {
	out := make([]PortInfo, len(ports))
	copy(out, ports)
	for i := range out {
		if out[i].Product != "" {
			continue
		}
		for _, b := range bridges {
			if strings.EqualFold(out[i].VID, b.VID) && strings.EqualFold(out[i].PID, b.PID) &&
				(out[i].Serial == "" || out[i].Serial == b.Serial) {
				out[i].Product = b.Product
				if out[i].Product == "" {
					out[i].Product = b.Kind
				}
				break
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Likely() && !out[j].Likely()
	})
	return out
}

// Discover lists serial ports and annotates them with USB bridge descriptors.
// A libusb failure is not fatal: the serial enumeration alone is returned
func Discover() ([]PortInfo, []Bridge, error) {
	ports, err := ListPorts()
	if err != nil {
		return nil, nil, err
	}
	bridges, _ := FindBridges()
	return Annotate(ports, bridges), bridges, nil
}
