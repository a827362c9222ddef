package monitor

import (
	"os"
	"strconv"
	"strings"
	"time"

	"codeberg.org/mutker/socctl/internal/errors"
	"codeberg.org/mutker/socctl/internal/logger"
)

// DefaultGpuResidencyPath is the cumulative GPU idle residency counter
// in milliseconds exposed by the i915/xe gtidle interface.
const DefaultGpuResidencyPath = "/sys/class/drm/card0/device/tile0/gt0/gtidle/idle_residency_ms"

// DefaultGpuWindow is the sampling window for idle residency deltas.
const DefaultGpuWindow = 1 * time.Second

// Idle residency at or below this share of the window marks the GPU as
// actively rendering.
const gpuIdleThreshold = 40.0

// GpuMonitor derives GPU activity from the idle residency counter. Each
// cycle it emits the idle percentage over the window together with the
// render mode: 1 when the GPU is busy, 0 when it idles. Cycles where the
// counter did not advance are skipped. The monitor starts paused.
type GpuMonitor struct {
	base
	path   string
	window time.Duration

	lastResidency int64
}

func NewGpuMonitor(path string, window time.Duration) *GpuMonitor {
	if path == "" {
		path = DefaultGpuResidencyPath
	}
	if window <= 0 {
		window = DefaultGpuWindow
	}

	return &GpuMonitor{
		base:   newBase(NameGpu, false),
		path:   path,
		window: window,
	}
}

// Init verifies the residency counter is readable.
func (m *GpuMonitor) Init() error {
	_, err := m.readResidency()

	return err
}

func (m *GpuMonitor) Run() {
	if !m.beginRun() {
		return
	}
	defer m.endRun()

	for m.awaitActive() {
		if err := m.sampleCycle(); err != nil {
			logger.Debug().Err(err).Msg("GPU residency sample failed")
		}
		if !m.rest(m.window) {
			return
		}
	}
}

func (m *GpuMonitor) sampleCycle() error {
	cur, err := m.readResidency()
	if err != nil {
		return err
	}
	if cur == m.lastResidency {
		return nil
	}

	delta := cur - m.lastResidency
	if delta < 0 {
		delta = 0
	}
	m.lastResidency = cur

	idle := float64(delta) * 100 / float64(m.window.Milliseconds())
	if idle > 100 {
		idle = 100
	}

	mode := 0.0
	if idle <= gpuIdleThreshold {
		mode = 1
	}

	m.notify(idle, mode)

	return nil
}

func (m *GpuMonitor) readResidency() (int64, error) {
	errFactory := errors.New()

	data, err := os.ReadFile(m.path)
	if err != nil {
		return 0, errFactory.Wrap(errors.ErrSysfsRead, err)
	}

	residency, err := strconv.ParseInt(strings.TrimSpace(string(data)), 10, 64)
	if err != nil {
		return 0, errFactory.Wrap(errors.ErrSysfsParse, err)
	}

	return residency, nil
}
