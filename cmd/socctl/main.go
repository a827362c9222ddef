package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"codeberg.org/mutker/socctl/internal/config"
	"codeberg.org/mutker/socctl/internal/containment"
	"codeberg.org/mutker/socctl/internal/hint"
	"codeberg.org/mutker/socctl/internal/logger"
	"codeberg.org/mutker/socctl/internal/metrics"
	"codeberg.org/mutker/socctl/internal/monitor"
	"codeberg.org/mutker/socctl/internal/pid"
)

var cfg *config.Config

func init() {
	var err error
	cfg, err = config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Debug, cfg.Verbose, logger.IsService())
	logger.Debug().Msg("Config loaded")
}

func main() {
	if err := pid.Write(cfg.Pidfile); err != nil {
		logger.Fatal().Err(err).Msg("failed to write pidfile")
	}
	defer func() {
		if err := pid.Remove(cfg.Pidfile); err != nil {
			logger.Error().Err(err).Msg("failed to remove pidfile")
		}
	}()

	metricsServer, err := metrics.NewServer(metrics.Config{
		Enabled:    cfg.Metrics,
		ListenAddr: cfg.MetricsListen,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize metrics")
	}
	if err := metricsServer.Start(); err != nil {
		logger.Fatal().Err(err).Msg("failed to start metrics")
	}
	defer metricsServer.Close()

	sink := connectSink()
	defer sink.Close()

	sysload, gpu, source := buildMonitors()

	controller := containment.NewController(containment.Config{
		SlowWorkload:  cfg.Source == config.SourceSwlt,
		SendHints:     cfg.SendHints,
		SendGfxHints:  cfg.SendGfxHints,
		EntryDebounce: time.Duration(cfg.EntryDebounce) * time.Second,
		ExitDebounce:  time.Duration(cfg.ExitDebounce) * time.Second,
	}, sink, asSampler(sysload), asRunner(gpu))

	controller.Start()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	// The GPU monitor is registered but its goroutine is launched on
	// demand by the controller, the first time the workload turns busy.
	active := make([]monitor.Monitor, 0, 3)
	if source != nil {
		source.SetChangeFunc(controller.OnChange)
		active = append(active, source)
		go source.Run()
	}
	if sysload != nil {
		sysload.SetChangeFunc(controller.OnChange)
		active = append(active, sysload)
		go sysload.Run()
	}
	if gpu != nil {
		gpu.SetChangeFunc(controller.OnChange)
		active = append(active, gpu)
	}

	if len(active) == 0 {
		logger.Error().Msg("No monitor initialized, nothing to do")
	} else {
		logger.Info().Str("source", cfg.Source).Msg("Monitoring started")
		<-ctx.Done()
	}

	for _, m := range active {
		m.Stop()
	}
	controller.Stop()
	logger.Info().Msg("Shutdown complete")
}

// connectSink connects to the power service when hint dispatch is
// enabled. A failed connection degrades to a discarding sink: the
// daemon keeps tracking state and logs what it would have sent.
func connectSink() hint.Sink {
	if !cfg.SendHints && !cfg.SendGfxHints {
		return hint.Discard()
	}

	sink, err := hint.NewDBusSink(cfg.PowerService)
	if err != nil {
		logger.Error().Err(err).Msg("Power service unreachable, hints will be dropped")

		return hint.Discard()
	}

	return sink
}

// buildMonitors constructs and initializes the monitor set. A monitor
// whose Init fails is excluded for the daemon's lifetime; the daemon
// continues with whatever remains.
func buildMonitors() (sysload *monitor.SysloadMonitor, gpu *monitor.GpuMonitor, source monitor.Monitor) {
	sysload = monitor.NewSysloadMonitor("", time.Duration(cfg.SysloadInterval)*time.Second)
	if err := sysload.Init(); err != nil {
		logger.Error().Err(err).Msg("System load monitor disabled")
		sysload = nil
	}

	gpu = monitor.NewGpuMonitor("", 0)
	if err := gpu.Init(); err != nil {
		logger.Error().Err(err).Msg("GPU monitor disabled")
		gpu = nil
	}

	switch cfg.Source {
	case config.SourceHfi:
		source = monitor.NewHfiMonitor()
	default:
		source = monitor.NewWltMonitor("", 0, cfg.NotificationDelay)
	}
	if err := source.Init(); err != nil {
		logger.Error().Err(err).Str("source", cfg.Source).Msg("Hint source monitor disabled")
		source = nil
	}

	return sysload, gpu, source
}

// asSampler and asRunner keep a nil monitor from turning into a
// non-nil interface value.
func asSampler(m *monitor.SysloadMonitor) containment.LoadSampler {
	if m == nil {
		return nil
	}

	return m
}

func asRunner(m *monitor.GpuMonitor) containment.GpuRunner {
	if m == nil {
		return nil
	}

	return m
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
	cancel()
}
