package containment

import (
	"time"
)

// CCState is the authoritative core containment state.
type CCState int32

const (
	// Open is normal operation with all cores available.
	Open CCState = iota
	// CoreContainment is the reduced-core platform mode entered when
	// the system is judged persistently idle.
	CoreContainment
)

func (s CCState) String() string {
	if s == CoreContainment {
		return "contained"
	}

	return "open"
}

// TimerKind selects one of the two debounce timers.
type TimerKind int

const (
	EntryTimer TimerKind = iota
	ExitTimer
)

func (k TimerKind) String() string {
	if k == ExitTimer {
		return "exit"
	}

	return "entry"
}

// LoadSampler provides smoothed CPU utilization to the state machine:
// a fresh sample on demand, the last smoothed value, and a pause gate
// for the background sampling cadence.
type LoadSampler interface {
	Sample() (float64, error)
	Latest() float64
	Pause()
	Resume()
}

// GpuRunner is the render activity monitor lifecycle driven on demand:
// its loop is started at most once, then paused and resumed with the
// workload regime.
type GpuRunner interface {
	Run()
	Pause()
	Resume()
}

// Controller is the core containment state machine. OnChange satisfies
// the monitor change callback and may be invoked concurrently from
// every monitor goroutine; expiring debounce timers re-enter the
// controller from the debounce goroutine.
type Controller interface {
	Start()
	Stop()
	OnChange(name string, oldValue, newValue float64)
	State() CCState
}

// Config carries the immutable containment policy supplied at
// construction.
type Config struct {
	// SlowWorkload switches the workload signal interpretation: the
	// slow-workload flag bit drives the efficient power hint directly,
	// with no debouncing and no state machine involvement.
	SlowWorkload  bool
	SendHints     bool
	SendGfxHints  bool
	EntryDebounce time.Duration
	ExitDebounce  time.Duration
}

const (
	defaultEntryDebounce = 10 * time.Second
	defaultExitDebounce  = 1 * time.Second

	// exitFallback is the re-arm window used when an exit decision is
	// inconclusive. Deliberately not configurable: the fallback exists
	// to brake oscillation, not to tune responsiveness.
	exitFallback = 5 * time.Second

	// exitSlopeThreshold is the rise in smoothed load (percentage
	// points) over the exit baseline required to leave containment.
	exitSlopeThreshold = 5.0
)
