package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPortInfoLikely(t *testing.T) {
	assert.True(t, PortInfo{Name: "/dev/ttyUSB0", IsUSB: true, VID: "10C4", PID: "EA60"}.Likely())
	assert.True(t, PortInfo{Name: "/dev/ttyUSB1", IsUSB: true, VID: "1a86", PID: "7523"}.Likely())
	assert.False(t, PortInfo{Name: "/dev/ttyS0"}.Likely())
	assert.False(t, PortInfo{Name: "/dev/ttyACM0", IsUSB: true, VID: "046d", PID: "c52b"}.Likely())
}

func TestAnnotate(t *testing.T) {
	ports := []PortInfo{
		{Name: "/dev/ttyS0"},
		{Name: "/dev/ttyUSB0", IsUSB: true, VID: "10c4", PID: "ea60", Serial: "0001"},
		{Name: "/dev/ttyUSB1", IsUSB: true, VID: "1a86", PID: "7523", Product: "USB Serial"},
	}
	bridges := []Bridge{
		{VID: "10c4", PID: "ea60", Kind: "Silicon Labs CP210x", Serial: "0001", Product: "CP2102"},
		{VID: "1a86", PID: "7523", Kind: "WCH CH340", Product: "should not replace"},
	}

	out := Annotate(ports, bridges)
	require.Len(t, out, 3)

	assert.Equal(t, "/dev/ttyUSB0", out[0].Name)
	assert.Equal(t, "CP2102", out[0].Product)
	assert.Equal(t, "/dev/ttyUSB1", out[1].Name)
	assert.Equal(t, "USB Serial", out[1].Product)
	assert.Equal(t, "/dev/ttyS0", out[2].Name)

	assert.Empty(t, ports[1].Product, "input must not be modified")
}

func TestAnnotateFallsBackToKind(t *testing.T) {
	ports := []PortInfo{{Name: "/dev/ttyUSB0", IsUSB: true, VID: "0403", PID: "6001"}}
	bridges := []Bridge{{VID: "0403", PID: "6001", Kind: "FTDI FT232R"}}

	out := Annotate(ports, bridges)
	assert.Equal(t, "FTDI FT232R", out[0].Product)
}

func TestListPorts(t *testing.T) {
	ports, err := ListPorts()
	if err != nil {
		t.Skip("Serial enumeration unavailable, skipping test")
	}
	for _, p := range ports {
		assert.NotEmpty(t, p.Name)
	}
}
