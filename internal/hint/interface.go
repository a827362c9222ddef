package hint

import (
	"codeberg.org/mutker/socctl/internal/logger"
)

// Hint channels understood by the power service.
const (
	EfficientPower = "EFFICIENT_POWER"
	GfxMode        = "GFX_MODE"
)

// Sink delivers power hints to the service acting on them. Send toggles
// the named hint. Implementations are safe for concurrent use.
type Sink interface {
	Send(name string, enabled bool) error
	Close() error
}

// Discard returns a Sink that drops every hint. It stands in when the
// power service is unreachable so that state tracking keeps running.
func Discard() Sink {
	return discardSink{}
}

type discardSink struct{}

func (discardSink) Send(name string, enabled bool) error {
	logger.Debug().Str("hint", name).Bool("enabled", enabled).Msg("No hint sink connected, dropping hint")

	return nil
}

func (discardSink) Close() error {
	return nil
}
