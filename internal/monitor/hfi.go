package monitor

import (
	"time"

	"codeberg.org/mutker/socctl/internal/errors"
	"codeberg.org/mutker/socctl/internal/logger"
	"github.com/mdlayher/genetlink"
	"github.com/mdlayher/netlink"
)

// Kernel thermal netlink interface. The command and attribute values
// follow include/uapi/linux/thermal.h.
const (
	thermalGenlFamily = "thermal"
	thermalGenlGroup  = "event"

	cmdCpuCapabilityChange = 14
	attrCpuCapability      = 20
)

const hfiReceiveRetryDelay = 1 * time.Second

// cpuCapability is one per-core entry of a hardware feedback event.
// Performance and efficiency arrive as 10-bit fixed point values and
// are scaled down to 0-255.
type cpuCapability struct {
	cpu  uint32
	perf uint32
	eff  uint32
}

// HfiMonitor listens for hardware feedback capability events on the
// thermal netlink family. It reduces each event to the efficiency
// capability of the last reported core and emits a transition whenever
// that value changes.
type HfiMonitor struct {
	base
	conn      *genetlink.Conn
	efficient uint32
}

func NewHfiMonitor() *HfiMonitor {
	return &HfiMonitor{
		base: newBase(NameHfi, true),
	}
}

// Init connects to the generic netlink thermal family and joins its
// event group.
func (m *HfiMonitor) Init() error {
	errFactory := errors.New()

	if m.conn != nil {
		return nil
	}

	conn, err := genetlink.Dial(nil)
	if err != nil {
		return errFactory.Wrap(errors.ErrNetlinkConnect, err)
	}

	family, err := conn.GetFamily(thermalGenlFamily)
	if err != nil {
		conn.Close()

		return errFactory.Wrap(errors.ErrNetlinkConnect, err)
	}

	groupID := uint32(0)
	found := false
	for _, group := range family.Groups {
		if group.Name == thermalGenlGroup {
			groupID = group.ID
			found = true

			break
		}
	}
	if !found {
		conn.Close()

		return errFactory.WithMessage(errors.ErrNetlinkGroup, "thermal family advertises no event group")
	}

	if err := conn.JoinGroup(groupID); err != nil {
		conn.Close()

		return errFactory.Wrap(errors.ErrNetlinkGroup, err)
	}
	m.conn = conn

	return nil
}

func (m *HfiMonitor) Run() {
	if !m.beginRun() {
		return
	}
	defer m.endRun()

	if m.conn == nil {
		return
	}

	for m.awaitActive() {
		msgs, _, err := m.conn.Receive()
		if err != nil {
			if m.stopping() {
				return
			}
			logger.Debug().Err(err).Msg("thermal netlink receive failed")
			if !m.rest(hfiReceiveRetryDelay) {
				return
			}

			continue
		}

		for _, msg := range msgs {
			m.handleMessage(msg)
		}
	}
}

// Stop closes the netlink connection to unblock a pending receive
// before joining the run loop.
func (m *HfiMonitor) Stop() {
	started := m.signalStop()

	if m.conn != nil {
		m.conn.Close()
	}
	if started {
		<-m.runDone
	}
}

func (m *HfiMonitor) handleMessage(msg genetlink.Message) {
	if msg.Header.Command != cmdCpuCapabilityChange {
		return
	}

	caps, err := decodeCpuCapabilities(msg.Data)
	if err != nil {
		logger.Debug().Err(err).Msg("thermal event decode failed")

		return
	}
	if len(caps) == 0 {
		return
	}

	for _, c := range caps {
		logger.Debug().
			Uint32("cpu", c.cpu).
			Uint32("perf", c.perf).
			Uint32("eff", c.eff).
			Msg("CPU capability changed")
	}

	eff := caps[len(caps)-1].eff
	if eff == m.efficient {
		return
	}

	old := m.efficient
	m.efficient = eff
	m.notify(float64(old), float64(eff))
}

func decodeCpuCapabilities(data []byte) ([]cpuCapability, error) {
	errFactory := errors.New()

	ad, err := netlink.NewAttributeDecoder(data)
	if err != nil {
		return nil, errFactory.Wrap(errors.ErrNetlinkDecode, err)
	}

	var caps []cpuCapability
	for ad.Next() {
		if ad.Type() != attrCpuCapability {
			continue
		}

		ad.Nested(func(nad *netlink.AttributeDecoder) error {
			// Entries arrive as a flat run of attributes cycling
			// through core ID, performance and efficiency.
			i := 0
			for nad.Next() {
				switch i % 3 {
				case 0:
					caps = append(caps, cpuCapability{cpu: nad.Uint32()})
				case 1:
					caps[len(caps)-1].perf = nad.Uint32() >> 2
				case 2:
					caps[len(caps)-1].eff = nad.Uint32() >> 2
				}
				i++
			}

			return nil
		})
	}
	if err := ad.Err(); err != nil {
		return nil, errFactory.Wrap(errors.ErrNetlinkDecode, err)
	}

	return caps, nil
}
