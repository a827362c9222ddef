// Package metrics carries the prometheus collectors for the
// containment daemon and an optional HTTP server exposing them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "socctl"

// ContainmentState is the current core containment state: 0 open,
// 1 contained.
var ContainmentState = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: namespace,
	Name:      "containment_state",
	Help:      "Current core containment state (0 open, 1 contained).",
})

// SmoothedLoad is the latest smoothed aggregate CPU utilization.
var SmoothedLoad = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: namespace,
	Name:      "smoothed_load_percent",
	Help:      "Smoothed aggregate CPU utilization in percent.",
})

// GpuIdle is the latest GPU idle residency share over the sampling
// window.
var GpuIdle = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: namespace,
	Name:      "gpu_idle_percent",
	Help:      "GPU idle residency over the sampling window in percent.",
})

// MonitorTransitions counts value transitions delivered by each
// monitor.
var MonitorTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "monitor_transitions_total",
	Help:      "Total value transitions reported by monitors.",
}, []string{"monitor"})

// HintDispatches counts hint values run through the dedupe, labeled by
// channel and mode.
var HintDispatches = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "hint_dispatches_total",
	Help:      "Total deduplicated hint dispatches.",
}, []string{"channel", "mode"})

// DebounceArms counts debounce timer arms and re-arms.
var DebounceArms = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "debounce_arms_total",
	Help:      "Total debounce timer arms, including re-arms.",
}, []string{"timer"})

// DebounceCancels counts debounce timer cancellations.
var DebounceCancels = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "debounce_cancels_total",
	Help:      "Total debounce timer cancellations.",
}, []string{"timer"})

// DebounceExpiries counts natural debounce timer expiries.
var DebounceExpiries = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "debounce_expiries_total",
	Help:      "Total natural debounce timer expiries.",
}, []string{"timer"})

// DebounceExtensions counts exit timers re-armed for the fallback
// window after an inconclusive decision.
var DebounceExtensions = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: namespace,
	Name:      "debounce_extensions_total",
	Help:      "Total exit debounce fallback extensions.",
})
