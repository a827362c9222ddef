package monitor_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"codeberg.org/mutker/socctl/internal/errors"
	"codeberg.org/mutker/socctl/internal/monitor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeProcStat lays down a stat file with the given cpu lines and the
// usual bookkeeping entries the kernel emits.
func writeProcStat(t *testing.T, dir string, cpuLines ...string) {
	t.Helper()

	content := ""
	for _, line := range cpuLines {
		content += line + "\n"
	}
	content += "intr 1462205 20 0 0 0\n" +
		"ctxt 2990249\n" +
		"btime 1756150000\n" +
		"processes 2576\n" +
		"procs_running 1\n" +
		"procs_blocked 0\n" +
		"softirq 688 0 176 0 0 0 0 166 0 0 346\n"

	require.NoError(t, os.WriteFile(filepath.Join(dir, "stat"), []byte(content), 0o644))
}

func TestSysloadMonitorSample(t *testing.T) {
	dir := t.TempDir()
	writeProcStat(t, dir, "cpu  100 0 100 700 100 0 0 0 0 0")

	m := monitor.NewSysloadMonitor(dir, time.Second)
	require.NoError(t, m.Init())

	assert.Equal(t, -1.0, m.Latest(), "no utilization before the first sample")

	load, err := m.Sample()
	require.NoError(t, err)
	assert.Equal(t, 20.0, load, "first sample should be the boot average")
	assert.Equal(t, 20.0, m.Latest())

	// No jiffies elapsed: the reading is rejected and the average holds.
	load, err = m.Sample()
	require.NoError(t, err)
	assert.Equal(t, 20.0, load)

	// A fully busy interval pulls the average up towards 100.
	writeProcStat(t, dir, "cpu  1100 0 1100 700 100 0 0 0 0 0")
	load, err = m.Sample()
	require.NoError(t, err)
	assert.Greater(t, load, 20.0)
	assert.Less(t, load, 100.0)
	assert.Equal(t, load, m.Latest())
}

func TestSysloadMonitorPerCPU(t *testing.T) {
	dir := t.TempDir()
	writeProcStat(t, dir,
		"cpu  100 0 100 700 100 0 0 0 0 0",
		"cpu0 50 0 50 350 50 0 0 0 0 0",
		"cpu1 50 0 50 350 50 0 0 0 0 0",
	)

	m := monitor.NewSysloadMonitor(dir, time.Second)
	require.NoError(t, m.Init())

	loads, err := m.PerCPU()
	require.NoError(t, err)
	assert.Equal(t, []float64{20.0, 20.0}, loads)

	// Core 0 runs flat out while core 1 sees no time pass.
	writeProcStat(t, dir,
		"cpu  200 0 200 700 100 0 0 0 0 0",
		"cpu0 150 0 150 350 50 0 0 0 0 0",
		"cpu1 50 0 50 350 50 0 0 0 0 0",
	)
	loads, err = m.PerCPU()
	require.NoError(t, err)
	assert.Equal(t, []float64{100.0, -1.0}, loads)
}

func TestSysloadMonitorPerCPUOfflineCore(t *testing.T) {
	dir := t.TempDir()
	writeProcStat(t, dir,
		"cpu  100 0 100 700 100 0 0 0 0 0",
		"cpu0 50 0 50 350 50 0 0 0 0 0",
		"cpu2 50 0 50 350 50 0 0 0 0 0",
	)

	m := monitor.NewSysloadMonitor(dir, time.Second)
	require.NoError(t, m.Init())

	loads, err := m.PerCPU()
	require.NoError(t, err)
	assert.Equal(t, []float64{20.0, -1.0, 20.0}, loads)
}

func TestSysloadMonitorNotifiesWhileLoadIsHigh(t *testing.T) {
	dir := t.TempDir()
	writeProcStat(t, dir, "cpu  800 0 100 50 50 0 0 0 0 0")

	m := monitor.NewSysloadMonitor(dir, 10*time.Millisecond)
	events := collectTransitions(m)
	require.NoError(t, m.Init())

	go m.Run()
	defer m.Stop()
	m.Resume()

	ev := waitTransition(t, events)
	assert.Equal(t, -1.0, ev.from)
	assert.Equal(t, 90.0, ev.to)

	// The alarm repeats every cycle for as long as the average stays
	// above the threshold.
	ev = waitTransition(t, events)
	assert.Equal(t, 90.0, ev.from)
	assert.Equal(t, 90.0, ev.to)
}

func TestSysloadMonitorQuietAtThreshold(t *testing.T) {
	dir := t.TempDir()
	writeProcStat(t, dir, "cpu  150 0 100 700 50 0 0 0 0 0")

	m := monitor.NewSysloadMonitor(dir, 10*time.Millisecond)
	events := collectTransitions(m)
	require.NoError(t, m.Init())

	go m.Run()
	defer m.Stop()
	m.Resume()

	// Exactly at the threshold does not qualify as high load.
	assertNoTransition(t, events, 100*time.Millisecond)
}

func TestSysloadMonitorErrors(t *testing.T) {
	m := monitor.NewSysloadMonitor(filepath.Join(t.TempDir(), "missing"), 0)
	err := m.Init()
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrMonitorInit))

	dir := t.TempDir()
	writeProcStat(t, dir, "cpu  100 0 100 700 100 0 0 0 0 0")
	m = monitor.NewSysloadMonitor(dir, 0)
	require.NoError(t, m.Init())
	require.NoError(t, os.Remove(filepath.Join(dir, "stat")))

	_, err = m.Sample()
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrProcStatRead))
}
