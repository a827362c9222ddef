package metrics

import "codeberg.org/mutker/socctl/internal/errors"

const defaultListenAddr = "localhost:2112"

type Config struct {
	Enabled    bool
	ListenAddr string
}

func DefaultConfig() Config {
	return Config{
		ListenAddr: defaultListenAddr,
		Enabled:    false, // Disabled by default
	}
}

func (c Config) Validate() error {
	errFactory := errors.New()

	// Only validate the listen address if metrics is enabled
	if c.Enabled && c.ListenAddr == "" {
		return errFactory.WithMessage(errors.ErrInitMetrics, "metrics listen address must be set")
	}

	return nil
}
