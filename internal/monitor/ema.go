package monitor

import (
	"math"
	"time"
)

// Smoothing time constant: larger values smooth slower.
const emaTau = 1.5

// ema is an exponential moving average whose weight adapts to the
// spacing of the samples, alpha = 1 - exp(-dt/tau). It is not safe for
// concurrent use; the owning monitor serializes access.
type ema struct {
	value       float64
	lastTs      time.Time
	initialized bool
}

// update folds raw into the average and returns the previous and the
// new smoothed value. A negative raw keeps the average unchanged but
// still refreshes the timestamp so the next alpha reflects the real
// elapsed time. The first valid sample initializes the average without
// smoothing.
func (e *ema) update(raw float64, now time.Time) (prev, cur float64) {
	prev = e.latest()

	if raw < 0 {
		e.lastTs = now
		return prev, prev
	}

	if !e.initialized {
		e.value = raw
		e.lastTs = now
		e.initialized = true

		return prev, e.value
	}

	dt := now.Sub(e.lastTs).Seconds()
	if dt < 0 {
		dt = 0
	}

	alpha := 1.0 - math.Exp(-dt/emaTau)
	if alpha < 0 {
		alpha = 0
	} else if alpha > 1 {
		alpha = 1
	}

	e.value = e.value*(1.0-alpha) + raw*alpha
	e.lastTs = now

	return prev, e.value
}

// latest returns the current smoothed value, or -1 before the first
// valid sample.
func (e *ema) latest() float64 {
	if !e.initialized {
		return -1
	}

	return e.value
}
