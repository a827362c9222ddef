package monitor

// Monitor names as reported through the change callback.
const (
	NameWlt     = "wlt"
	NameHfi     = "hfi"
	NameSysload = "sysload"
	NameGpu     = "gpu"
)

// ChangeFunc receives a value transition from a monitor. It is invoked
// on the emitting monitor's goroutine, so implementations must not block
// for long. The meaning of the values depends on the monitor: workload
// hints and capability levels arrive as integral values, utilization as
// percentages.
type ChangeFunc func(name string, oldValue, newValue float64)

// Monitor is a single telemetry source feeding the containment
// controller.
//
// Init prepares the source; a monitor whose Init fails is excluded from
// the daemon for its lifetime and produces no events. Run blocks and
// belongs on a dedicated goroutine. Pause and Resume gate processing
// without tearing the goroutine down; no events are synthesized for the
// paused interval. Stop terminates Run and joins it when it was started;
// the change callback is never invoked after Stop returns. SetChangeFunc
// must be called before Run.
type Monitor interface {
	Name() string
	Init() error
	Run()
	Pause()
	Resume()
	Stop()
	SetChangeFunc(fn ChangeFunc)
}

// WorkloadType classifies the firmware workload hint.
type WorkloadType int

const (
	WorkloadIdle WorkloadType = iota
	WorkloadBattery
	WorkloadSustain
	WorkloadBursty
)

// workloadTypeMask selects the classification bits of a raw
// workload_type_index value.
const workloadTypeMask = 0x3

// SlowWorkloadBit flags a firmware request for the power-biased profile,
// independent of the workload classification.
const SlowWorkloadBit = 1 << 4

// DecodeWorkload extracts the workload classification from a raw
// workload_type_index value.
func DecodeWorkload(raw int) WorkloadType {
	return WorkloadType(raw & workloadTypeMask)
}

// Busy reports whether the workload demands sustained processing.
func (w WorkloadType) Busy() bool {
	return w == WorkloadSustain || w == WorkloadBursty
}

func (w WorkloadType) String() string {
	switch w {
	case WorkloadIdle:
		return "idle"
	case WorkloadBattery:
		return "battery"
	case WorkloadSustain:
		return "sustain"
	case WorkloadBursty:
		return "bursty"
	default:
		return "unknown"
	}
}
