package config

import (
	"os"
	"strings"

	"codeberg.org/mutker/socctl/internal/errors"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Hint sources selectable via the source setting.
const (
	SourceWlt  = "wlt"
	SourceSwlt = "swlt"
	SourceHfi  = "hfi"
)

// Defaults applied before file, environment and flag overrides.
const (
	DefaultSource            = SourceWlt
	DefaultNotificationDelay = -1
	DefaultSysloadInterval   = 3
	DefaultEntryDebounce     = 10
	DefaultExitDebounce      = 1
	DefaultPowerService      = "com.intel.PowerService"
	DefaultMetricsListen     = "localhost:2112"
	DefaultLogLevel          = "info"
)

type Config struct {
	Source            string `mapstructure:"source"`
	SendHints         bool   `mapstructure:"send_hints"`
	SendGfxHints      bool   `mapstructure:"send_gfx_hints"`
	NotificationDelay int    `mapstructure:"notification_delay"`
	SysloadInterval   int    `mapstructure:"sysload_interval"`
	EntryDebounce     int    `mapstructure:"entry_debounce"`
	ExitDebounce      int    `mapstructure:"exit_debounce"`
	PowerService      string `mapstructure:"power_service"`
	Metrics           bool   `mapstructure:"metrics"`
	MetricsListen     string `mapstructure:"metrics_listen"`
	Pidfile           string `mapstructure:"pidfile"`
	LogLevel          string `mapstructure:"log_level"`
	Debug             bool   `mapstructure:"debug"`
	Verbose           bool   `mapstructure:"verbose"`
}

func Load(opts ...Option) (*Config, error) {
	errFactory := errors.New()

	o := defaultOptions()
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
		}
	}

	// Define flags on a private set so repeated loads stay independent
	fs := pflag.NewFlagSet("socctl", pflag.ContinueOnError)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	fs.String("source", DefaultSource, "Containment hint source: wlt, swlt or hfi")
	fs.Bool("send-hints", true, "Dispatch efficient power hints to the power service")
	fs.Bool("send-gfx-hints", true, "Dispatch graphics mode hints to the power service")
	fs.Int("notification-delay", DefaultNotificationDelay, "Workload notification delay in ms (-1 keeps the kernel default)")
	fs.Int("sysload-interval", DefaultSysloadInterval, "System load sampling interval in seconds")
	fs.Int("entry-debounce", DefaultEntryDebounce, "Containment entry debounce in seconds")
	fs.Int("exit-debounce", DefaultExitDebounce, "Containment exit debounce in seconds")
	fs.String("power-service", DefaultPowerService, "D-Bus destination of the platform power service")
	fs.Bool("metrics", false, "Expose prometheus metrics")
	fs.String("metrics-listen", DefaultMetricsListen, "Metrics listen address")
	fs.String("pidfile", "", "Pidfile path (empty uses the system temp dir)")
	fs.String("config", "", "Path to config file")
	fs.String("log-level", DefaultLogLevel, "Log level: debug, info, warning or error")
	fs.Bool("debug", false, "Enable debugging mode")
	fs.Bool("verbose", false, "Enable verbose logging")

	// Parse flags
	if err := fs.Parse(os.Args[1:]); err != nil {
		return nil, errFactory.Wrap(errors.ErrBindFlags, err)
	}

	v := viper.New()
	setDefaults(v)

	// Load configuration from file. An explicit path (flag, option or
	// environment) must exist; the default /etc lookup tolerates absence.
	configFile := o.configPath
	if env := os.Getenv(o.envPrefix + "_CONFIG"); env != "" {
		configFile = env
	}
	if fs.Changed("config") {
		configFile, _ = fs.GetString("config")
	}
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, errFactory.Wrap(errors.ErrReadConfig, err)
		}
	} else {
		v.SetConfigName("socctl.conf")
		v.SetConfigType("toml")
		v.AddConfigPath("/etc")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, errFactory.Wrap(errors.ErrReadConfig, err)
			}
		}
	}

	// Override config file values with command line flags
	fs.Visit(func(f *pflag.Flag) {
		if f.Name == "config" {
			return
		}
		v.Set(strings.ReplaceAll(f.Name, "-", "_"), f.Value.String())
	})

	// Unmarshal the configuration
	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, errFactory.Wrap(errors.ErrInvalidConfig, err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("source", DefaultSource)
	v.SetDefault("send_hints", true)
	v.SetDefault("send_gfx_hints", true)
	v.SetDefault("notification_delay", DefaultNotificationDelay)
	v.SetDefault("sysload_interval", DefaultSysloadInterval)
	v.SetDefault("entry_debounce", DefaultEntryDebounce)
	v.SetDefault("exit_debounce", DefaultExitDebounce)
	v.SetDefault("power_service", DefaultPowerService)
	v.SetDefault("metrics", false)
	v.SetDefault("metrics_listen", DefaultMetricsListen)
	v.SetDefault("pidfile", "")
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("debug", false)
	v.SetDefault("verbose", false)
}

// Validate checks the loaded configuration for values the daemon
// cannot operate with.
func (c *Config) Validate() error {
	errFactory := errors.New()

	switch c.Source {
	case SourceWlt, SourceSwlt, SourceHfi:
	default:
		return errFactory.WithMessage(errors.ErrInvalidSource, "source must be wlt, swlt or hfi")
	}

	if c.NotificationDelay >= 0 && c.Source == SourceHfi {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "notification_delay requires the wlt or swlt source")
	}

	if c.SysloadInterval <= 0 {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "sysload_interval must be positive")
	}

	if c.EntryDebounce <= 0 || c.ExitDebounce <= 0 {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "debounce intervals must be positive")
	}

	if c.Metrics && c.MetricsListen == "" {
		return errFactory.WithMessage(errors.ErrInvalidConfig, "metrics_listen must be set when metrics are enabled")
	}

	if !LogLevel(c.LogLevel).IsValid() {
		return errFactory.WithMessage(errors.ErrInvalidLogLevel, "log level must be debug, info, warning or error")
	}

	return nil
}
