package monitor

import (
	"sync"
	"time"

	"codeberg.org/mutker/socctl/internal/errors"
	"codeberg.org/mutker/socctl/internal/logger"
	"github.com/prometheus/procfs"
)

// DefaultProcMount is where the kernel exposes CPU accounting.
const DefaultProcMount = procfs.DefaultMountPoint

// HighLoadThreshold is the smoothed CPU utilization (percent) above
// which the system is considered busy.
const HighLoadThreshold = 25.0

const defaultSysloadInterval = 3 * time.Second

// cpuTimes is a snapshot of cumulative CPU jiffies split into idle and
// total time.
type cpuTimes struct {
	idle  float64
	total float64
}

func cpuTimesOf(s procfs.CPUStat) cpuTimes {
	return cpuTimes{
		idle: s.Idle + s.Iowait,
		total: s.User + s.Nice + s.System + s.Idle + s.Iowait +
			s.IRQ + s.SoftIRQ + s.Steal + s.Guest + s.GuestNice,
	}
}

// utilization derives the busy percentage from two cumulative
// snapshots. It returns -1 when no time elapsed between them.
func utilization(prev, cur cpuTimes) float64 {
	deltaTotal := cur.total - prev.total
	if deltaTotal <= 0 {
		return -1
	}

	deltaIdle := cur.idle - prev.idle
	if deltaIdle < 0 {
		deltaIdle = 0
	}

	busy := deltaTotal - deltaIdle
	if busy < 0 {
		busy = 0
	}

	return busy / deltaTotal * 100
}

// SysloadMonitor samples aggregate CPU utilization from /proc/stat and
// smooths it with an exponential moving average. It emits the previous
// and current smoothed values on every sampling cycle that exceeds
// HighLoadThreshold. The monitor starts paused; sampling cadence is
// controlled by whichever component resumes it.
type SysloadMonitor struct {
	base
	mount    string
	interval time.Duration

	mu     sync.Mutex
	fs     procfs.FS
	ema    ema
	total  cpuTimes
	percpu map[int64]cpuTimes
}

func NewSysloadMonitor(procMount string, interval time.Duration) *SysloadMonitor {
	if procMount == "" {
		procMount = DefaultProcMount
	}
	if interval <= 0 {
		interval = defaultSysloadInterval
	}

	return &SysloadMonitor{
		base:     newBase(NameSysload, false),
		mount:    procMount,
		interval: interval,
		percpu:   make(map[int64]cpuTimes),
	}
}

func (m *SysloadMonitor) Init() error {
	errFactory := errors.New()

	fs, err := procfs.NewFS(m.mount)
	if err != nil {
		return errFactory.Wrap(errors.ErrMonitorInit, err)
	}
	m.fs = fs

	return nil
}

func (m *SysloadMonitor) Run() {
	if !m.beginRun() {
		return
	}
	defer m.endRun()

	for m.awaitActive() {
		m.mu.Lock()
		prev, cur, err := m.sampleLocked(time.Now())
		m.mu.Unlock()

		switch {
		case err != nil:
			logger.Debug().Err(err).Msg("CPU load sample failed")
		case cur > HighLoadThreshold:
			m.notify(prev, cur)
		}

		if !m.rest(m.interval) {
			return
		}
	}
}

// Sample takes a fresh utilization reading, folds it into the moving
// average and returns the smoothed value.
func (m *SysloadMonitor) Sample() (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	_, cur, err := m.sampleLocked(time.Now())

	return cur, err
}

// Latest returns the most recent smoothed utilization without taking a
// new reading. It returns -1 before the first sample.
func (m *SysloadMonitor) Latest() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.ema.latest()
}

// PerCPU returns the per-core utilization since the previous call,
// indexed by core ID. Cores missing from the kernel snapshot report -1.
func (m *SysloadMonitor) PerCPU() ([]float64, error) {
	errFactory := errors.New()

	m.mu.Lock()
	defer m.mu.Unlock()

	stat, err := m.fs.Stat()
	if err != nil {
		return nil, errFactory.Wrap(errors.ErrProcStatRead, err)
	}

	maxID := int64(-1)
	for id := range stat.CPU {
		if id > maxID {
			maxID = id
		}
	}

	loads := make([]float64, maxID+1)
	for i := range loads {
		loads[i] = -1
	}
	for id, s := range stat.CPU {
		cur := cpuTimesOf(s)
		loads[id] = utilization(m.percpu[id], cur)
		m.percpu[id] = cur
	}

	return loads, nil
}

func (m *SysloadMonitor) sampleLocked(now time.Time) (prevLoad, curLoad float64, err error) {
	errFactory := errors.New()

	stat, err := m.fs.Stat()
	if err != nil {
		return -1, -1, errFactory.Wrap(errors.ErrProcStatRead, err)
	}

	cur := cpuTimesOf(stat.CPUTotal)
	raw := utilization(m.total, cur)
	m.total = cur

	prevLoad, curLoad = m.ema.update(raw, now)

	return prevLoad, curLoad, nil
}
