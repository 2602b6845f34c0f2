package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetDefaults(t *testing.T) {
	var cfg Config
	cfg.SetDefaults()

	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, 20*time.Second, cfg.Call.PollGrace)
	assert.Equal(t, 30*time.Minute, cfg.Call.PollLookback)
	assert.Equal(t, int32(20), cfg.Call.FeePerMinute)
	assert.Equal(t, 3, cfg.Call.StayLimit)
	assert.Equal(t, 20, cfg.Call.ShowLimit)
	assert.Equal(t, 180, cfg.YTX.Credit)
	assert.Equal(t, 5*time.Second, cfg.YTX.RequestTimeout)
	assert.Equal(t, "CN", cfg.Phone.DefaultRegion)
	assert.Equal(t, "ringlink:", cfg.Redis.KeyPrefix)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
server:
  http_port: 9000
call:
  poll_grace: 45s
  fee_per_minute: 30
ytx:
  account_sid: sid-1
  app_id: app-1
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Same(t, cfg, GlobalConfig)
	assert.Equal(t, 9000, cfg.Server.HTTPPort)
	assert.Equal(t, 45*time.Second, cfg.Call.PollGrace)
	assert.Equal(t, int32(30), cfg.Call.FeePerMinute)
	assert.Equal(t, time.Minute, cfg.Call.PollInterval)
	assert.Equal(t, "sid-1", cfg.YTX.AccountSid)
	assert.Equal(t, 50, cfg.YTX.DstTimeout)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
