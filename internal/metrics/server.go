package metrics

import (
	"net/http"

	"codeberg.org/mutker/socctl/internal/errors"
	"codeberg.org/mutker/socctl/internal/logger"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type server struct {
	srv *http.Server
}

// No-op implementation
type noopServer struct{}

// NewServer builds the metrics endpoint for the given configuration.
// When metrics are disabled it returns a no-op server so callers need
// no conditional wiring.
func NewServer(cfg Config) (Server, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(errors.ErrInitMetrics, err)
	}

	if !cfg.Enabled {
		logger.Debug().Msg("Metrics endpoint disabled, using no-op server")

		return &noopServer{}, nil
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	return &server{
		srv: &http.Server{
			Addr:    cfg.ListenAddr,
			Handler: mux,
		},
	}, nil
}

// Start serves the endpoint on a background goroutine. Serve errors
// other than the shutdown sentinel are logged, not fatal: losing the
// scrape endpoint must not stop monitoring.
func (s *server) Start() error {
	errFactory := errors.New()

	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(errFactory.Wrap(errors.ErrServeMetrics, err)).Msg("Metrics endpoint failed")
		}
	}()

	logger.Info().Str("addr", s.srv.Addr).Msg("Metrics endpoint listening")

	return nil
}

func (s *server) Close() error {
	errFactory := errors.New()

	if err := s.srv.Close(); err != nil {
		return errFactory.Wrap(errors.ErrCloseMetrics, err)
	}

	return nil
}

func (*noopServer) Start() error { return nil }
func (*noopServer) Close() error { return nil }
