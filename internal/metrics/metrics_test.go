package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConfigValidate(t *testing.T) {
	assert.NoError(t, DefaultConfig().Validate())

	cfg := Config{Enabled: true, ListenAddr: "localhost:2112"}
	assert.NoError(t, cfg.Validate())

	cfg.ListenAddr = ""
	assert.Error(t, cfg.Validate())

	// A missing address only matters when the endpoint is enabled.
	cfg.Enabled = false
	assert.NoError(t, cfg.Validate())
}

func TestNewServerDisabled(t *testing.T) {
	srv, err := NewServer(DefaultConfig())
	require.NoError(t, err)

	assert.NoError(t, srv.Start())
	assert.NoError(t, srv.Close())
	assert.NoError(t, srv.Close(), "closing twice is harmless")
}

func TestNewServerRejectsInvalidConfig(t *testing.T) {
	_, err := NewServer(Config{Enabled: true})
	require.Error(t, err)
}

func TestNewServerEnabled(t *testing.T) {
	srv, err := NewServer(Config{Enabled: true, ListenAddr: "localhost:0"})
	require.NoError(t, err)

	require.NoError(t, srv.Start())
	assert.NoError(t, srv.Close())
}
