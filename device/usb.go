package device

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/gousb"
)

// Known USB-serial bridges found on embosser controller boards.
// Reference: vendor datasheets and the Marlin board list
var knownBridges = map[[2]gousb.ID]string{
	{0x10c4, 0xea60}: "Silicon Labs CP210x",
	{0x1a86, 0x7523}: "WCH CH340",
	{0x1a86, 0x55d4}: "WCH CH9102",
	{0x0403, 0x6001}: "FTDI FT232R",
	{0x0403, 0x6015}: "FTDI FT231X",
	{0x2341, 0x0042}: "Arduino Mega 2560",
	{0x2341, 0x0010}: "Arduino Mega 2560",
	{0x1d50, 0x6029}: "Marlin CDC",
}

// Bridge describes an attached USB-serial bridge
type Bridge struct {
	VID          string
	PID          string
	Kind         string
	Manufacturer string
	Product      string
	Serial       string
}

// String returns a one-line description
func (b Bridge) String() string {
	desc := b.Product
	if desc == "" {
		desc = b.Kind
	}
	return fmt.Sprintf("%s:%s %s (serial %s)", b.VID, b.PID, desc, b.Serial)
}

// IsBridge checks if a device descriptor belongs to a known USB-serial bridge
func IsBridge(desc *gousb.DeviceDesc) bool {
	if desc == nil {
		return false
	}
	_, ok := knownBridges[[2]gousb.ID{desc.Vendor, desc.Product}]
	return ok
}

// FindBridges returns every attached USB-serial bridge. It needs libusb and
// permission to open the matching devices
func FindBridges() ([]Bridge, error) {
	ctx := gousb.NewContext()
	defer ctx.Close()

	devices, err := ctx.OpenDevices(IsBridge)
	defer func() {
		for _, dev := range devices {
			dev.Close()
		}
	}()
	if err != nil && len(devices) == 0 {
		return nil, fmt.Errorf("enumerate usb devices: %w", err)
	}

	bridges := make([]Bridge, 0, len(devices))
	for _, dev := range devices {
		bridges = append(bridges, describe(dev))
	}
	if len(bridges) == 0 {
		return nil, errors.New("no usb-serial bridge found")
	}
	return bridges, nil
}

func describe(dev *gousb.Device) Bridge {
	desc := dev.Desc
	b := Bridge{
		VID:  desc.Vendor.String(),
		PID:  desc.Product.String(),
		Kind: knownBridges[[2]gousb.ID{desc.Vendor, desc.Product}],
	}
	// String descriptors are optional; an unreadable one is left blank
	if s, err := dev.Manufacturer(); err == nil {
		b.Manufacturer = strings.TrimSpace(s)
	}
	if s, err := dev.Product(); err == nil {
		b.Product = strings.TrimSpace(s)
	}
	if s, err := dev.SerialNumber(); err == nil {
		b.Serial = strings.TrimSpace(s)
	}
	return b
}
