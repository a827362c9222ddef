package hint

import (
	"strings"

	"codeberg.org/mutker/socctl/internal/errors"
	"codeberg.org/mutker/socctl/internal/logger"
	"github.com/godbus/dbus/v5"
)

// DefaultService is the well-known bus name of the power service.
const DefaultService = "com.intel.PowerService"

type dbusSink struct {
	conn   *dbus.Conn
	obj    dbus.BusObject
	method string
}

// NewDBusSink connects to the system bus and targets the hint service
// under the given bus name. The object path and method are derived from
// the name following the service's convention.
func NewDBusSink(service string) (Sink, error) {
	errFactory := errors.New()

	if service == "" {
		service = DefaultService
	}

	conn, err := dbus.ConnectSystemBus()
	if err != nil {
		return nil, errFactory.Wrap(errors.ErrHintConnect, err)
	}

	return &dbusSink{
		conn:   conn,
		obj:    conn.Object(service, objectPathFor(service)),
		method: service + ".SetMode",
	}, nil
}

func (s *dbusSink) Send(name string, enabled bool) error {
	errFactory := errors.New()

	if call := s.obj.Call(s.method, 0, name, enabled); call.Err != nil {
		return errFactory.Wrap(errors.ErrHintDispatch, call.Err)
	}

	logger.Debug().Str("hint", name).Bool("enabled", enabled).Msg("Hint dispatched")

	return nil
}

func (s *dbusSink) Close() error {
	errFactory := errors.New()

	if err := s.conn.Close(); err != nil {
		return errFactory.Wrap(errors.ErrShutdownFailed, err)
	}

	return nil
}

func objectPathFor(service string) dbus.ObjectPath {
	return dbus.ObjectPath("/" + strings.ReplaceAll(service, ".", "/"))
}
