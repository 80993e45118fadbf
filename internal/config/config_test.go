package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const validYAML = `
server: "collector.example.com:10106"
interval: 60
readings: 30
imei: "123456789012345"
location:
  type: simulated
  lat: 45.448803
  lon: -75.635337
`

func TestLoadValid(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML), Overrides{})
	require.NoError(t, err)

	assert.Equal(t, "collector.example.com:10106", cfg.Server)
	assert.Equal(t, 60, cfg.Interval)
	assert.Equal(t, 30, cfg.Readings)
	assert.Equal(t, "123456789012345", cfg.IMEI)

	// 缺省值
	assert.Equal(t, "00000000", cfg.Code)
	assert.Equal(t, "001", cfg.MCC)
	assert.Equal(t, "LTE-M", cfg.RAT)
	assert.Equal(t, 5, cfg.UpdateDuration)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.False(t, cfg.MotionEnabled())
}

func TestLoadMissingIMEI(t *testing.T) {
	_, err := Load(writeConfig(t, `
server: "h:1000"
interval: 60
`), Overrides{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestLoadBadServer(t *testing.T) {
	for _, server := range []string{"nohostport", "host:notaport", ":1000", "host:99999"} {
		_, err := Load(writeConfig(t, `
server: "`+server+`"
interval: 60
imei: "123456789012345"
location: {type: cellid}
`), Overrides{})
		assert.ErrorIs(t, err, ErrInvalid, server)
	}
}

func TestLoadFailureRateOutOfRange(t *testing.T) {
	_, err := Load(writeConfig(t, `
server: "h:1000"
interval: 60
imei: "123456789012345"
updateFailureRate: 1.5
location: {type: cellid}
`), Overrides{})
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestLoadSimulatedWithoutCoordinates(t *testing.T) {
	_, err := Load(writeConfig(t, `
server: "h:1000"
interval: 60
imei: "123456789012345"
location:
  type: simulated
`), Overrides{})
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestLoadNegativeInterval(t *testing.T) {
	_, err := Load(writeConfig(t, `
server: "h:1000"
interval: -5
imei: "123456789012345"
location: {type: cellid}
`), Overrides{})
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestLoadFlatCoordinates(t *testing.T) {
	// 原有扁平 lat/lon 写法仍被接受
	cfg, err := Load(writeConfig(t, `
server: "h:1000"
interval: 60
imei: "123456789012345"
lat: 51.5
lon: -0.1
`), Overrides{})
	require.NoError(t, err)
	require.NotNil(t, cfg.Location.Lat)
	assert.Equal(t, 51.5, *cfg.Location.Lat)
}

func TestOverridesWin(t *testing.T) {
	server := "override.example.com:2000"
	interval := 15
	imei := "999888777666555"

	cfg, err := Load(writeConfig(t, validYAML), Overrides{
		Server:   &server,
		Interval: &interval,
		IMEI:     &imei,
	})
	require.NoError(t, err)

	assert.Equal(t, server, cfg.Server)
	assert.Equal(t, 15, cfg.Interval)
	assert.Equal(t, imei, cfg.IMEI)
	// 未覆盖的键保持文件值
	assert.Equal(t, 30, cfg.Readings)
}

func TestOverridesValidatedLikeFile(t *testing.T) {
	bad := "not-an-imei"
	_, err := Load(writeConfig(t, validYAML), Overrides{IMEI: &bad})
	assert.ErrorIs(t, err, ErrInvalid)
}

func TestMotionEnabled(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML+`
motionDuration: 10
motionInterval: 30
`), Overrides{})
	require.NoError(t, err)
	assert.True(t, cfg.MotionEnabled())
}
