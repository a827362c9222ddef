package containment

import (
	"sync"
	"sync/atomic"

	"codeberg.org/mutker/socctl/internal/errors"
	"codeberg.org/mutker/socctl/internal/hint"
	"codeberg.org/mutker/socctl/internal/logger"
	"codeberg.org/mutker/socctl/internal/metrics"
	"codeberg.org/mutker/socctl/internal/monitor"
)

// entryLoadThreshold is the smoothed CPU utilization (percent) at or
// above which an expired entry timer refuses to enter containment.
const entryLoadThreshold = 25.0

// maxEfficientPower is the hardware feedback level that forces
// containment. The feedback channel is hardware-debounced, so it
// bypasses the timers entirely.
const maxEfficientPower = 255

// controller holds the authoritative containment state and applies the
// per-signal transition rules. It runs no goroutine of its own: every
// entry point executes on the calling monitor's goroutine or on the
// debounce engine's goroutine.
type controller struct {
	cfg  Config
	sink hint.Sink
	load LoadSampler
	gpu  GpuRunner

	deb   *Debouncer
	state atomic.Int32

	mu            sync.Mutex
	baseline      float64
	gpuStarted    bool
	lastEfficient bool
	lastGfx       bool
}

// NewController builds the containment state machine around the given
// hint sink, load sampler and on-demand render monitor. load and gpu
// may be nil when their monitors failed to initialize; the affected
// rules then degrade to no-ops.
func NewController(cfg Config, sink hint.Sink, load LoadSampler, gpu GpuRunner) Controller {
	return newController(cfg, sink, load, gpu, realClock{})
}

func newController(cfg Config, sink hint.Sink, load LoadSampler, gpu GpuRunner, clk clock) *controller {
	if cfg.EntryDebounce <= 0 {
		cfg.EntryDebounce = defaultEntryDebounce
	}
	if cfg.ExitDebounce <= 0 {
		cfg.ExitDebounce = defaultExitDebounce
	}

	c := &controller{
		cfg:  cfg,
		sink: sink,
		load: load,
		gpu:  gpu,
	}
	c.deb = newDebouncer(clk, c.onExpire)

	return c
}

// Start launches the debounce engine. The daemon calls it once before
// any monitor goroutine is spawned.
func (c *controller) Start() {
	c.deb.Start()
}

// Stop terminates the debounce engine. Monitors must already be
// stopped so no signal re-arms a timer afterwards.
func (c *controller) Stop() {
	c.deb.Stop()
}

// State returns the current containment state.
func (c *controller) State() CCState {
	return CCState(c.state.Load())
}

// OnChange receives every monitor transition. It may be invoked
// concurrently from all monitor goroutines.
func (c *controller) OnChange(name string, oldValue, newValue float64) {
	metrics.MonitorTransitions.WithLabelValues(name).Inc()

	switch name {
	case monitor.NameWlt:
		c.onWorkload(int(oldValue), int(newValue))
	case monitor.NameHfi:
		c.onFeedback(int(newValue))
	case monitor.NameSysload:
		c.onHighLoad(newValue)
	case monitor.NameGpu:
		c.onRender(oldValue, newValue)
	default:
		logger.Warn().Str("monitor", name).Msg("Transition from unknown monitor ignored")
	}
}

func (c *controller) onWorkload(oldRaw, newRaw int) {
	// In slow-workload mode the classification bits are ignored: the
	// firmware request bit maps straight onto the hint.
	if c.cfg.SlowWorkload {
		c.setEfficientPower(newRaw&monitor.SlowWorkloadBit != 0)

		return
	}

	wl := monitor.DecodeWorkload(newRaw)
	prev := monitor.DecodeWorkload(oldRaw)
	logger.Debug().Stringer("workload", wl).Stringer("state", c.State()).Msg("Workload signal")

	if c.State() == Open {
		c.workloadWhileOpen(wl)

		return
	}

	c.workloadWhileContained(prev, wl)
}

// workloadWhileOpen arms the entry countdown when the system goes
// quiet and cancels it when sustained work shows up again. A bursty
// hint alone neither arms nor cancels: bursts are too short-lived to
// say anything about containment.
func (c *controller) workloadWhileOpen(wl monitor.WorkloadType) {
	switch wl {
	case monitor.WorkloadIdle, monitor.WorkloadBattery:
		if !c.deb.Armed(EntryTimer) {
			c.deb.Arm(EntryTimer, c.cfg.EntryDebounce)
		}
		c.pauseGpu()
	case monitor.WorkloadSustain:
		c.deb.Cancel(EntryTimer)
		c.resumeGpuIfStarted()
	case monitor.WorkloadBursty:
	}
}

// workloadWhileContained drives the exit countdown. Entering the busy
// regime captures the load baseline the exit decision is judged
// against and brings the render monitor up.
func (c *controller) workloadWhileContained(prev, wl monitor.WorkloadType) {
	cur := c.sampleLoad()

	if !wl.Busy() {
		c.deb.Cancel(ExitTimer)
		c.pauseGpu()

		return
	}

	if !prev.Busy() {
		c.mu.Lock()
		c.baseline = cur
		c.mu.Unlock()

		logger.Debug().Float64("baseline", cur).Msg("Busy regime entered, baseline captured")
		c.startGpu()
	} else {
		c.resumeGpuIfStarted()
	}

	if !c.deb.Armed(ExitTimer) {
		c.deb.Arm(ExitTimer, c.cfg.ExitDebounce)
	}
}

// onFeedback applies the hardware feedback override: the maximum
// efficient power level forces containment, anything else forces open.
// Pending timers are left alone; a later expiry finds the state it
// needs already settled and backs off.
func (c *controller) onFeedback(level int) {
	if level == maxEfficientPower {
		if c.setState(CoreContainment) {
			logger.Info().Int("level", level).Msg("Feedback forced containment")
		}
		c.setEfficientPower(true)

		return
	}

	if c.setState(Open) {
		logger.Info().Int("level", level).Msg("Feedback forced open")
	}
	c.setEfficientPower(false)
}

// onHighLoad is the safety override: sustained high CPU load must
// never remain contained, whatever the timers are doing. It fires on
// every threshold crossing; the hint dedupe absorbs the repeats.
func (c *controller) onHighLoad(cur float64) {
	metrics.SmoothedLoad.Set(cur)

	if c.setState(Open) {
		logger.Info().Float64("load", cur).Msg("High load forced open")
	}
	c.setEfficientPower(false)
}

// onRender translates GPU activity into the graphics mode hint,
// independent of containment.
func (c *controller) onRender(idle, mode float64) {
	metrics.GpuIdle.Set(idle)
	c.setGfxMode(mode != 0)
}

func (c *controller) onExpire(kind TimerKind) {
	if kind == EntryTimer {
		c.entryExpired()

		return
	}

	c.exitExpired()
}

// entryExpired commits to containment when the load sampled at expiry
// confirms the system stayed quiet. Otherwise the state is left alone
// and no retry is scheduled: the next idle signal arms a fresh timer.
func (c *controller) entryExpired() {
	if c.State() == CoreContainment {
		// Entry timers are only armed while open and nothing else
		// moves the state towards containment in workload mode.
		errFactory := errors.New()
		logger.Error().
			Err(errFactory.WithMessage(errors.ErrInvariantViolation, "entry timer expired while contained")).
			Msg("Invariant violated")

		return
	}

	cur := c.sampleLoad()
	if cur >= entryLoadThreshold {
		logger.Debug().Float64("load", cur).Msg("Load too high at entry expiry, staying open")

		return
	}

	if c.swapState(Open, CoreContainment) {
		logger.Info().Float64("load", cur).Msg("Entering core containment")
		c.setEfficientPower(true)
	}
}

// exitExpired leaves containment only when load has demonstrably risen
// over the baseline captured at busy entry. An inconclusive reading
// re-arms the timer for the longer fallback window with the baseline
// untouched, braking oscillation instead of giving up.
func (c *controller) exitExpired() {
	if c.State() != CoreContainment {
		return
	}

	cur := c.sampleLoad()

	c.mu.Lock()
	baseline := c.baseline
	c.mu.Unlock()

	if cur-baseline <= exitSlopeThreshold {
		logger.Debug().
			Float64("load", cur).
			Float64("baseline", baseline).
			Msg("Load recovery inconclusive, extending exit debounce")
		metrics.DebounceExtensions.Inc()
		c.deb.Arm(ExitTimer, exitFallback)

		return
	}

	if c.swapState(CoreContainment, Open) {
		logger.Info().Float64("load", cur).Float64("baseline", baseline).Msg("Leaving core containment")
		c.setEfficientPower(false)
	}
}

// setState moves to s unconditionally and reports whether the state
// actually changed.
func (c *controller) setState(s CCState) bool {
	changed := c.state.Swap(int32(s)) != int32(s)
	if changed {
		metrics.ContainmentState.Set(float64(s))
	}

	return changed
}

// swapState moves from from to to and reports whether it did.
func (c *controller) swapState(from, to CCState) bool {
	swapped := c.state.CompareAndSwap(int32(from), int32(to))
	if swapped {
		metrics.ContainmentState.Set(float64(to))
	}

	return swapped
}

// setEfficientPower runs the efficient power hint through the
// edge-triggered dedupe. The remembered value advances regardless of
// transport outcome and even when dispatch is disabled; a repeat of
// the remembered value does nothing. A flip also gates the load
// sampler cadence, which is only needed while containment decisions
// depend on fresh data.
func (c *controller) setEfficientPower(enabled bool) {
	c.mu.Lock()
	if c.lastEfficient == enabled {
		c.mu.Unlock()

		return
	}
	c.lastEfficient = enabled
	c.mu.Unlock()

	if c.load != nil {
		if enabled {
			c.load.Resume()
		} else {
			c.load.Pause()
		}
	}

	c.dispatch(hint.EfficientPower, enabled, c.cfg.SendHints)
}

// setGfxMode is the graphics mode counterpart, with its own dedupe and
// no side effects beyond the dispatch.
func (c *controller) setGfxMode(enabled bool) {
	c.mu.Lock()
	if c.lastGfx == enabled {
		c.mu.Unlock()

		return
	}
	c.lastGfx = enabled
	c.mu.Unlock()

	c.dispatch(hint.GfxMode, enabled, c.cfg.SendGfxHints)
}

// dispatch delivers a hint with no locks held. Transport failure is
// logged and dropped: a stale hint is preferable to stalling the
// monitors behind a retry.
func (c *controller) dispatch(channel string, enabled bool, send bool) {
	metrics.HintDispatches.WithLabelValues(channel, hintMode(enabled)).Inc()

	if !send {
		logger.Debug().Str("hint", channel).Bool("enabled", enabled).Msg("Hint dispatch disabled by configuration")

		return
	}

	if err := c.sink.Send(channel, enabled); err != nil {
		logger.Error().Err(err).Str("hint", channel).Bool("enabled", enabled).Msg("Hint dispatch failed")
	}
}

// sampleLoad takes a fresh smoothed utilization reading. It reports -1
// when no sampler is available or the read failed, which the entry
// rule deliberately treats as quiet.
func (c *controller) sampleLoad() float64 {
	if c.load == nil {
		return -1
	}

	cur, err := c.load.Sample()
	if err != nil {
		logger.Debug().Err(err).Msg("Load sample failed")
	}

	if cur >= 0 {
		metrics.SmoothedLoad.Set(cur)
	}

	return cur
}

// startGpu resumes the render monitor and launches its goroutine the
// first time the busy regime is entered. Creation happens at most once
// per daemon run; later busy entries only resume.
func (c *controller) startGpu() {
	if c.gpu == nil {
		return
	}

	c.mu.Lock()
	first := !c.gpuStarted
	c.gpuStarted = true
	c.mu.Unlock()

	c.gpu.Resume()

	if first {
		logger.Debug().Msg("Starting render activity monitor")
		go c.gpu.Run()
	}
}

func (c *controller) pauseGpu() {
	if c.gpuRunning() {
		c.gpu.Pause()
	}
}

func (c *controller) resumeGpuIfStarted() {
	if c.gpuRunning() {
		c.gpu.Resume()
	}
}

func (c *controller) gpuRunning() bool {
	if c.gpu == nil {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	return c.gpuStarted
}

func hintMode(enabled bool) string {
	if enabled {
		return "1"
	}

	return "0"
}
