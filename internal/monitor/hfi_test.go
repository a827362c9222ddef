package monitor

import (
	"testing"

	"github.com/mdlayher/genetlink"
	"github.com/mdlayher/netlink"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeCapabilityEvent(t *testing.T, caps []cpuCapability) []byte {
	t.Helper()

	ae := netlink.NewAttributeEncoder()
	ae.Nested(attrCpuCapability, func(nae *netlink.AttributeEncoder) error {
		typ := uint16(1)
		for _, c := range caps {
			nae.Uint32(typ, c.cpu)
			typ++
			nae.Uint32(typ, c.perf<<2)
			typ++
			nae.Uint32(typ, c.eff<<2)
			typ++
		}

		return nil
	})

	data, err := ae.Encode()
	require.NoError(t, err)

	return data
}

func TestDecodeCpuCapabilities(t *testing.T) {
	want := []cpuCapability{
		{cpu: 0, perf: 200, eff: 100},
		{cpu: 1, perf: 220, eff: 255},
	}

	caps, err := decodeCpuCapabilities(encodeCapabilityEvent(t, want))
	require.NoError(t, err)
	assert.Equal(t, want, caps)
}

func TestDecodeCpuCapabilitiesIgnoresOtherAttributes(t *testing.T) {
	ae := netlink.NewAttributeEncoder()
	ae.Uint32(5, 7)
	ae.Nested(attrCpuCapability, func(nae *netlink.AttributeEncoder) error {
		nae.Uint32(1, 3)
		nae.Uint32(2, 100<<2)
		nae.Uint32(3, 50<<2)

		return nil
	})
	data, err := ae.Encode()
	require.NoError(t, err)

	caps, err := decodeCpuCapabilities(data)
	require.NoError(t, err)
	assert.Equal(t, []cpuCapability{{cpu: 3, perf: 100, eff: 50}}, caps)
}

func TestHfiMonitorNotifiesOnEfficiencyChange(t *testing.T) {
	type hfiEvent struct{ from, to float64 }

	m := NewHfiMonitor()
	var events []hfiEvent
	m.SetChangeFunc(func(_ string, oldValue, newValue float64) {
		events = append(events, hfiEvent{from: oldValue, to: newValue})
	})

	msg := func(cmd uint8, caps []cpuCapability) genetlink.Message {
		return genetlink.Message{
			Header: genetlink.Header{Command: cmd, Version: 1},
			Data:   encodeCapabilityEvent(t, caps),
		}
	}

	// Unrelated thermal events are ignored even with a valid payload.
	m.handleMessage(msg(1, []cpuCapability{{cpu: 0, perf: 100, eff: 255}}))
	assert.Empty(t, events)

	// The efficiency of the last reported core is the scalar that
	// matters.
	m.handleMessage(msg(cmdCpuCapabilityChange, []cpuCapability{
		{cpu: 0, perf: 100, eff: 200},
		{cpu: 1, perf: 90, eff: 255},
	}))
	require.Len(t, events, 1)
	assert.Equal(t, hfiEvent{from: 0, to: 255}, events[0])

	// Repeating the same value is not a change.
	m.handleMessage(msg(cmdCpuCapabilityChange, []cpuCapability{{cpu: 1, perf: 90, eff: 255}}))
	assert.Len(t, events, 1)

	m.handleMessage(msg(cmdCpuCapabilityChange, []cpuCapability{{cpu: 1, perf: 90, eff: 60}}))
	require.Len(t, events, 2)
	assert.Equal(t, hfiEvent{from: 255, to: 60}, events[1])

	// Events with no capability entries are ignored.
	m.handleMessage(genetlink.Message{
		Header: genetlink.Header{Command: cmdCpuCapabilityChange, Version: 1},
	})
	assert.Len(t, events, 2)
}
