package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"codeberg.org/mutker/socctl/internal/config"
	"codeberg.org/mutker/socctl/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfigFile(t *testing.T, content string) string {
	t.Helper()

	configPath := filepath.Join(t.TempDir(), "socctl.toml")
	err := os.WriteFile(configPath, []byte(content), 0o600)
	require.NoError(t, err)

	return configPath
}

func TestLoad(t *testing.T) {
	configPath := writeConfigFile(t, `
source = "swlt"
send_hints = false
send_gfx_hints = false
notification_delay = 250
sysload_interval = 5
entry_debounce = 20
exit_debounce = 2
power_service = "com.example.PowerService"
metrics = true
metrics_listen = "localhost:9300"
pidfile = "/run/socctl.pid"
log_level = "debug"
`)

	// Set environment variable to point to the test config file
	t.Setenv("SOCCTL_CONFIG", configPath)

	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, "swlt", cfg.Source, "Expected Source swlt")
	assert.False(t, cfg.SendHints, "Expected SendHints false")
	assert.False(t, cfg.SendGfxHints, "Expected SendGfxHints false")
	assert.Equal(t, 250, cfg.NotificationDelay, "Expected NotificationDelay 250")
	assert.Equal(t, 5, cfg.SysloadInterval, "Expected SysloadInterval 5")
	assert.Equal(t, 20, cfg.EntryDebounce, "Expected EntryDebounce 20")
	assert.Equal(t, 2, cfg.ExitDebounce, "Expected ExitDebounce 2")
	assert.Equal(t, "com.example.PowerService", cfg.PowerService, "Expected PowerService from file")
	assert.True(t, cfg.Metrics, "Expected Metrics true")
	assert.Equal(t, "localhost:9300", cfg.MetricsListen, "Expected MetricsListen from file")
	assert.Equal(t, "/run/socctl.pid", cfg.Pidfile, "Expected Pidfile from file")
	assert.Equal(t, "debug", cfg.LogLevel, "Expected LogLevel debug")
}

func TestLoadDefaults(t *testing.T) {
	// Ensure no config file is used
	t.Setenv("SOCCTL_CONFIG", "")

	cfg, err := config.Load()
	require.NoError(t, err, "Failed to load config")

	assert.Equal(t, config.SourceWlt, cfg.Source, "Expected default Source wlt")
	assert.True(t, cfg.SendHints, "Expected default SendHints true")
	assert.True(t, cfg.SendGfxHints, "Expected default SendGfxHints true")
	assert.Equal(t, config.DefaultNotificationDelay, cfg.NotificationDelay, "Expected default NotificationDelay -1")
	assert.Equal(t, config.DefaultSysloadInterval, cfg.SysloadInterval, "Expected default SysloadInterval 3")
	assert.Equal(t, config.DefaultEntryDebounce, cfg.EntryDebounce, "Expected default EntryDebounce 10")
	assert.Equal(t, config.DefaultExitDebounce, cfg.ExitDebounce, "Expected default ExitDebounce 1")
	assert.Equal(t, config.DefaultPowerService, cfg.PowerService, "Expected default PowerService")
	assert.False(t, cfg.Metrics, "Expected default Metrics false")
	assert.Equal(t, config.DefaultMetricsListen, cfg.MetricsListen, "Expected default MetricsListen")
	assert.Empty(t, cfg.Pidfile, "Expected default Pidfile empty")
	assert.Equal(t, config.DefaultLogLevel, cfg.LogLevel, "Expected default LogLevel info")
	assert.False(t, cfg.Debug, "Expected default Debug false")
	assert.False(t, cfg.Verbose, "Expected default Verbose false")
}

func TestLoadWithConfigFileOption(t *testing.T) {
	t.Setenv("SOCCTL_CONFIG", "")

	configPath := writeConfigFile(t, `
source = "hfi"
`)

	cfg, err := config.Load(config.WithConfigFile(configPath))
	require.NoError(t, err)
	assert.Equal(t, config.SourceHfi, cfg.Source, "Expected Source from explicit config file")
}

func TestLoadWithEnvPrefix(t *testing.T) {
	t.Setenv("SOCCTL_CONFIG", "")

	configPath := writeConfigFile(t, `
sysload_interval = 7
`)
	t.Setenv("SOCCTLTEST_CONFIG", configPath)

	cfg, err := config.Load(config.WithEnvPrefix("SOCCTLTEST"))
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.SysloadInterval, "Expected SysloadInterval from prefixed env config")
}

func TestLoadConfigFileInvalidFormat(t *testing.T) {
	configPath := writeConfigFile(t, `
This is not a valid TOML file
`)

	t.Setenv("SOCCTL_CONFIG", configPath)

	_, err := config.Load()
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrReadConfig), "Expected read config error code")
}

func TestLoadMissingExplicitConfigFile(t *testing.T) {
	t.Setenv("SOCCTL_CONFIG", filepath.Join(t.TempDir(), "missing.toml"))

	_, err := config.Load()
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrReadConfig), "Expected read config error code")
}

func TestInvalidLogLevel(t *testing.T) {
	configPath := writeConfigFile(t, `
log_level = "invalid"
`)

	t.Setenv("SOCCTL_CONFIG", configPath)

	_, err := config.Load()
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidLogLevel), "Expected invalid log level error code")
}

func TestInvalidSource(t *testing.T) {
	configPath := writeConfigFile(t, `
source = "cpufreq"
`)

	t.Setenv("SOCCTL_CONFIG", configPath)

	_, err := config.Load()
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidSource), "Expected invalid source error code")
}

func TestNotificationDelayRequiresWorkloadSource(t *testing.T) {
	configPath := writeConfigFile(t, `
source = "hfi"
notification_delay = 100
`)

	t.Setenv("SOCCTL_CONFIG", configPath)

	_, err := config.Load()
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidConfig), "Expected invalid config error code")
	assert.Contains(t, err.Error(), "notification_delay")
}

func TestLogLevelFlag(t *testing.T) {
	t.Setenv("SOCCTL_CONFIG", "")

	// Save original args and restore after test
	oldArgs := os.Args
	defer func() { os.Args = oldArgs }()

	// Set test args
	os.Args = []string{"cmd", "--log-level", "debug"}

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.LogLevel, "Expected LogLevel to be set by flag")
}

func TestFlagOverridesFile(t *testing.T) {
	configPath := writeConfigFile(t, `
source = "wlt"
entry_debounce = 30
`)

	t.Setenv("SOCCTL_CONFIG", configPath)

	oldArgs := os.Args
	defer func() { os.Args = oldArgs }()

	os.Args = []string{"cmd", "--source", "hfi", "--send-hints=false"}

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, config.SourceHfi, cfg.Source, "Expected flag to override file source")
	assert.False(t, cfg.SendHints, "Expected flag to override default send_hints")
	assert.Equal(t, 30, cfg.EntryDebounce, "Expected file value preserved for unset flags")
}

func TestValidate(t *testing.T) {
	valid := &config.Config{
		Source:            config.SourceWlt,
		NotificationDelay: -1,
		SysloadInterval:   3,
		EntryDebounce:     10,
		ExitDebounce:      1,
		LogLevel:          "info",
	}
	require.NoError(t, valid.Validate())

	noInterval := *valid
	noInterval.SysloadInterval = 0
	assert.True(t, errors.HasCode(noInterval.Validate(), errors.ErrInvalidConfig))

	noDebounce := *valid
	noDebounce.ExitDebounce = 0
	assert.True(t, errors.HasCode(noDebounce.Validate(), errors.ErrInvalidConfig))

	metricsNoListen := *valid
	metricsNoListen.Metrics = true
	metricsNoListen.MetricsListen = ""
	assert.True(t, errors.HasCode(metricsNoListen.Validate(), errors.ErrInvalidConfig))
}
