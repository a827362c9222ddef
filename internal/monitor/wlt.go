package monitor

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"codeberg.org/mutker/socctl/internal/errors"
	"codeberg.org/mutker/socctl/internal/logger"
	"golang.org/x/sys/unix"
)

// Sysfs locations of the workload type hint exposed by the SoC firmware.
const (
	DefaultWltDir = "/sys/devices/pci0000:00/0000:00:04.0/workload_hint"

	wltIndexFile  = "workload_type_index"
	wltEnableFile = "workload_hint_enable"
	wltDelayFile  = "notification_delay_ms"
)

// DefaultWltPollTimeout bounds each wait for a sysfs notification so the
// run loop can observe Stop.
const DefaultWltPollTimeout = 1 * time.Second

const sysfsReadBufferSize = 16

// WltMonitor watches the firmware workload type hint via sysfs and
// emits a transition whenever the raw value changes. The first read
// counts as a change from an empty prior, reported with an old value
// of zero.
type WltMonitor struct {
	base
	dir         string
	pollTimeout time.Duration
	delay       int

	file *os.File
	last string
}

// NewWltMonitor creates a workload type monitor reading from dir. A
// non-negative notificationDelay is written to the firmware during Init.
func NewWltMonitor(dir string, pollTimeout time.Duration, notificationDelay int) *WltMonitor {
	if dir == "" {
		dir = DefaultWltDir
	}
	if pollTimeout <= 0 {
		pollTimeout = DefaultWltPollTimeout
	}

	return &WltMonitor{
		base:        newBase(NameWlt, true),
		dir:         dir,
		pollTimeout: pollTimeout,
		delay:       notificationDelay,
	}
}

// Init enables workload hinting when the firmware reports it disabled,
// applies the configured notification delay and opens the hint index.
func (m *WltMonitor) Init() error {
	errFactory := errors.New()

	if m.file != nil {
		return nil
	}

	enablePath := filepath.Join(m.dir, wltEnableFile)
	enabled, err := os.ReadFile(enablePath)
	if err != nil {
		return errFactory.Wrap(errors.ErrSysfsRead, err)
	}
	if strings.TrimSpace(string(enabled)) == "0" {
		if err := os.WriteFile(enablePath, []byte("1\n"), 0o644); err != nil {
			return errFactory.Wrap(errors.ErrSysfsWrite, err)
		}
		logger.Info().Msgf("Enabled workload hinting via %s", enablePath)
	}

	if m.delay >= 0 {
		delayPath := filepath.Join(m.dir, wltDelayFile)
		if err := os.WriteFile(delayPath, []byte(strconv.Itoa(m.delay)+"\n"), 0o644); err != nil {
			return errFactory.Wrap(errors.ErrSysfsWrite, err)
		}
		logger.Debug().Msgf("Set workload notification delay: %dms", m.delay)
	}

	file, err := os.Open(filepath.Join(m.dir, wltIndexFile))
	if err != nil {
		return errFactory.Wrap(errors.ErrSysfsOpen, err)
	}
	m.file = file

	return nil
}

func (m *WltMonitor) Run() {
	if !m.beginRun() {
		return
	}
	defer m.endRun()

	if m.file == nil {
		return
	}

	for m.awaitActive() {
		if err := m.readCycle(); err != nil {
			logger.Debug().Err(err).Msg("workload type read failed")
		}
		if !m.pollChange() {
			return
		}
	}
}

func (m *WltMonitor) Stop() {
	m.base.Stop()

	if m.file != nil {
		m.file.Close()
	}
}

// readCycle re-reads the hint index and emits a transition when the raw
// value changed. Values that fail to parse are skipped and do not
// advance the remembered state.
func (m *WltMonitor) readCycle() error {
	errFactory := errors.New()

	buf := make([]byte, sysfsReadBufferSize)
	n, err := m.file.ReadAt(buf, 0)
	if n <= 0 && err != nil {
		return errFactory.Wrap(errors.ErrSysfsRead, err)
	}

	raw := strings.TrimSpace(string(buf[:n]))
	if raw == m.last {
		return nil
	}

	newValue, err := strconv.Atoi(raw)
	if err != nil {
		return errFactory.Wrap(errors.ErrSysfsParse, err)
	}

	oldValue := 0
	if m.last != "" {
		oldValue, _ = strconv.Atoi(m.last)
	}
	m.last = raw

	logger.Debug().Int("old", oldValue).Int("new", newValue).Msg("Workload type changed")
	m.notify(float64(oldValue), float64(newValue))

	return nil
}

// pollChange waits for a sysfs notification on the hint index, up to
// the poll timeout. The caller re-reads in either case; the timeout
// bounds how long Stop and missed notifications can stay unnoticed.
// It returns false when the monitor is stopping.
func (m *WltMonitor) pollChange() bool {
	fds := []unix.PollFd{{Fd: int32(m.file.Fd()), Events: unix.POLLPRI | unix.POLLERR}}

	for {
		if m.stopping() {
			return false
		}

		_, err := unix.Poll(fds, int(m.pollTimeout.Milliseconds()))
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			logger.Debug().Err(err).Msg("workload type poll failed")

			return m.rest(m.pollTimeout)
		}

		return true
	}
}
