package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadBytesOverridesNamedParameters(t *testing.T) {
	data := []byte(`
[uuxi]
packet-size = 2048
window = 8
sync-timeout = 5
retries = 10
`)
	cfg, err := LoadBytes(data)
	require.NoError(t, err)

	assert.EqualValues(t, 2048, cfg.PacketSize)
	assert.EqualValues(t, 8, cfg.Window)
	assert.Equal(t, 5*time.Second, cfg.SyncTimeout)
	assert.Equal(t, 10, cfg.Retries)

	// Keys absent from the file keep their session.DefaultConfig() value.
	assert.Equal(t, 6, cfg.SyncRetries)
	assert.Equal(t, 100, cfg.Errors)
	assert.Equal(t, 10, cfg.ErrorDecay)
	assert.EqualValues(t, 0, cfg.RemotePacketSize)
}

func TestLoadBytesMissingSectionYieldsDefaults(t *testing.T) {
	cfg, err := LoadBytes([]byte(`[other]\nkey = 1\n`))
	require.NoError(t, err)
	assert.EqualValues(t, 1024, cfg.PacketSize)
	assert.EqualValues(t, 16, cfg.Window)
}
