package monitor

import (
	"sync"
	"time"
)

// base carries the lifecycle shared by all monitors: the pause gate, the
// stop flag and the change callback. Embedding monitors drive their run
// loops through awaitActive and rest so that Pause, Resume and Stop take
// effect at the next iteration.
type base struct {
	name string

	mu         sync.Mutex
	active     bool
	stopped    bool
	runStarted bool
	changeFunc ChangeFunc

	wakeC    chan struct{}
	stopC    chan struct{}
	runDone  chan struct{}
	stopOnce sync.Once
}

func newBase(name string, active bool) base {
	return base{
		name:    name,
		active:  active,
		wakeC:   make(chan struct{}, 1),
		stopC:   make(chan struct{}),
		runDone: make(chan struct{}),
	}
}

func (b *base) Name() string {
	return b.name
}

// SetChangeFunc installs the transition callback. It must be called
// before Run starts.
func (b *base) SetChangeFunc(fn ChangeFunc) {
	b.mu.Lock()
	b.changeFunc = fn
	b.mu.Unlock()
}

// Pause suspends processing at the next loop iteration.
func (b *base) Pause() {
	b.mu.Lock()
	b.active = false
	b.mu.Unlock()
}

// Resume continues processing and wakes a loop waiting in awaitActive.
func (b *base) Resume() {
	b.mu.Lock()
	b.active = true
	b.mu.Unlock()

	select {
	case b.wakeC <- struct{}{}:
	default:
	}
}

// Stop terminates the run loop and joins it when one was started. The
// change callback is never invoked after Stop returns.
func (b *base) Stop() {
	if b.signalStop() {
		<-b.runDone
	}
}

// signalStop marks the monitor stopped and unblocks any wait. It reports
// whether a run loop was started and must therefore be joined.
func (b *base) signalStop() bool {
	b.mu.Lock()
	b.stopped = true
	started := b.runStarted
	b.mu.Unlock()

	b.stopOnce.Do(func() { close(b.stopC) })

	return started
}

// beginRun claims the run loop. It returns false when the monitor is
// already stopped or a loop is already running.
func (b *base) beginRun() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.stopped || b.runStarted {
		return false
	}
	b.runStarted = true

	return true
}

func (b *base) endRun() {
	close(b.runDone)
}

// awaitActive blocks until the monitor is active. It returns false when
// the monitor is stopping.
func (b *base) awaitActive() bool {
	for {
		b.mu.Lock()
		stopped, active := b.stopped, b.active
		b.mu.Unlock()

		if stopped {
			return false
		}
		if active {
			return true
		}

		select {
		case <-b.wakeC:
		case <-b.stopC:
		}
	}
}

// rest sleeps for d, waking early on Stop. It returns false when the
// monitor is stopping.
func (b *base) rest(d time.Duration) bool {
	select {
	case <-time.After(d):
		return true
	case <-b.stopC:
		return false
	}
}

func (b *base) stopping() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.stopped
}

// notify forwards a transition to the installed callback, if any.
func (b *base) notify(oldValue, newValue float64) {
	b.mu.Lock()
	fn := b.changeFunc
	b.mu.Unlock()

	if fn != nil {
		fn(b.name, oldValue, newValue)
	}
}
