package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestConfigDefaults(t *testing.T) {
	conf, err := NewConfig("", true, nil)
	require.NoError(t, err)
	require.Equal(t, uint32(3000), conf.Port)
	require.Equal(t, uint16(40000), conf.RTC.PortRangeStart)
	require.Equal(t, uint16(49999), conf.RTC.PortRangeEnd)
	require.Equal(t, uint64(1500000), conf.RTC.MaxIncomingBitrate)
	require.Equal(t, 10*time.Second, conf.RTC.MediaTimeout)
	require.Len(t, conf.RTC.Codecs, 2)
	require.Equal(t, "0.0.0.0:3000", conf.ListenAddress())
}

func TestConfigFromYAML(t *testing.T) {
	conf, err := NewConfig(`
port: 7880
log_level: debug
rtc:
  announced_ip: 10.0.0.5
  media_timeout: 3s
redis:
  address: localhost:6379
`, true, nil)
	require.NoError(t, err)
	require.Equal(t, uint32(7880), conf.Port)
	require.Equal(t, "debug", conf.LogLevel)
	require.Equal(t, "10.0.0.5", conf.RTC.AnnouncedIP)
	require.Equal(t, 3*time.Second, conf.RTC.MediaTimeout)
	require.Equal(t, "localhost:6379", conf.Redis.Address)
	// untouched sections keep their defaults
	require.Equal(t, uint16(40000), conf.RTC.PortRangeStart)
	require.Equal(t, "class:", conf.Redis.KeyPrefix)
}

func TestConfigStrictMode(t *testing.T) {
	_, err := NewConfig("unknown_field: true", true, nil)
	require.Error(t, err)

	_, err = NewConfig("unknown_field: true", false, nil)
	require.NoError(t, err)
}

func TestConfigValidation(t *testing.T) {
	_, err := NewConfig(`
rtc:
  port_range_start: 5000
  port_range_end: 4000
`, true, nil)
	require.ErrorIs(t, err, ErrInvalidPortRange)

	_, err = NewConfig(`
rtc:
  codecs:
    - kind: audio
      mime_type: audio/opus
      clock_rate: 48000
`, true, nil)
	require.ErrorIs(t, err, ErrMissingCodec)
}

func TestConfigEnvOverrides(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://class@localhost/class")
	t.Setenv("NODE_IP", "192.168.1.20")

	conf, err := NewConfig("", true, nil)
	require.NoError(t, err)
	require.Equal(t, "postgres://class@localhost/class", conf.Database.URL)
	require.Equal(t, "192.168.1.20", conf.RTC.AnnouncedIP)
}

func TestLoadEnvFile(t *testing.T) {
	require.NoError(t, LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")))

	path := filepath.Join(t.TempDir(), "test.env")
	require.NoError(t, os.WriteFile(path, []byte("CLASS_TEST_VALUE=from-env-file\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("CLASS_TEST_VALUE") })

	require.NoError(t, LoadEnvFile(path))
	require.Equal(t, "from-env-file", os.Getenv("CLASS_TEST_VALUE"))
}
