package containment

import (
	"sync"
	"time"

	"codeberg.org/mutker/socctl/internal/logger"
	"codeberg.org/mutker/socctl/internal/metrics"
)

// clock abstracts time so the engine can run against a simulated clock.
type clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

type realClock struct{}

func (realClock) Now() time.Time                         { return time.Now() }
func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }

// Debouncer multiplexes the entry and exit countdown timers on a single
// goroutine. Arming an already armed timer replaces its deadline; a
// cancelled timer never fires. The expiry callback runs on the engine
// goroutine with no internal lock held, so it may re-arm timers freely.
type Debouncer struct {
	clk      clock
	onExpire func(kind TimerKind)

	mu       sync.Mutex
	deadline [2]time.Time
	started  bool
	stopped  bool

	wakeC    chan struct{}
	stopC    chan struct{}
	doneC    chan struct{}
	stopOnce sync.Once
}

func NewDebouncer(onExpire func(kind TimerKind)) *Debouncer {
	return newDebouncer(realClock{}, onExpire)
}

func newDebouncer(clk clock, onExpire func(kind TimerKind)) *Debouncer {
	return &Debouncer{
		clk:      clk,
		onExpire: onExpire,
		wakeC:    make(chan struct{}, 1),
		stopC:    make(chan struct{}),
		doneC:    make(chan struct{}),
	}
}

// Start launches the engine goroutine. Subsequent calls are no-ops.
func (d *Debouncer) Start() {
	d.mu.Lock()
	if d.started || d.stopped {
		d.mu.Unlock()

		return
	}
	d.started = true
	d.mu.Unlock()

	go d.run()
}

// Stop terminates the engine and joins its goroutine. No expiry
// callback is invoked after Stop returns.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	d.stopped = true
	started := d.started
	d.deadline[EntryTimer] = time.Time{}
	d.deadline[ExitTimer] = time.Time{}
	d.mu.Unlock()

	d.stopOnce.Do(func() { close(d.stopC) })
	if started {
		<-d.doneC
	}
}

// Arm schedules kind to expire after the given duration, replacing any
// deadline already pending for it.
func (d *Debouncer) Arm(kind TimerKind, after time.Duration) {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()

		return
	}
	d.deadline[kind] = d.clk.Now().Add(after)
	d.mu.Unlock()

	d.wake()
	metrics.DebounceArms.WithLabelValues(kind.String()).Inc()
	logger.Debug().Stringer("timer", kind).Dur("after", after).Msg("Debounce timer armed")
}

// Cancel disarms kind. Cancellation is linearized with the expiry
// check: once Cancel returns, the pending deadline will not fire.
func (d *Debouncer) Cancel(kind TimerKind) {
	d.mu.Lock()
	armed := !d.deadline[kind].IsZero()
	d.deadline[kind] = time.Time{}
	d.mu.Unlock()

	if armed {
		d.wake()
		metrics.DebounceCancels.WithLabelValues(kind.String()).Inc()
		logger.Debug().Stringer("timer", kind).Msg("Debounce timer cancelled")
	}
}

// Armed reports whether kind has a pending deadline.
func (d *Debouncer) Armed(kind TimerKind) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	return !d.deadline[kind].IsZero()
}

func (d *Debouncer) wake() {
	select {
	case d.wakeC <- struct{}{}:
	default:
	}
}

func (d *Debouncer) run() {
	defer close(d.doneC)

	for {
		d.mu.Lock()
		if d.stopped {
			d.mu.Unlock()

			return
		}

		now := d.clk.Now()
		var due []TimerKind
		var next time.Time
		for k := range d.deadline {
			dl := d.deadline[k]
			switch {
			case dl.IsZero():
			case !dl.After(now):
				d.deadline[k] = time.Time{}
				due = append(due, TimerKind(k))
			case next.IsZero() || dl.Before(next):
				next = dl
			}
		}
		d.mu.Unlock()

		if len(due) > 0 {
			for _, kind := range due {
				metrics.DebounceExpiries.WithLabelValues(kind.String()).Inc()
				logger.Debug().Stringer("timer", kind).Msg("Debounce timer expired")
				d.onExpire(kind)
			}

			// The callback may have re-armed a timer.
			continue
		}

		if next.IsZero() {
			select {
			case <-d.wakeC:
			case <-d.stopC:
				return
			}

			continue
		}

		select {
		case <-d.clk.After(next.Sub(now)):
		case <-d.wakeC:
		case <-d.stopC:
			return
		}
	}
}
