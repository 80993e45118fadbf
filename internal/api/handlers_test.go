package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracker-sim/tracker-device-sim/internal/config"
	"github.com/tracker-sim/tracker-device-sim/internal/device"
	"github.com/tracker-sim/tracker-device-sim/internal/models"
)

func newTestServer(t *testing.T) *DebugServer {
	t.Helper()

	lat, lon := 59.33, 18.06
	cfg := &config.Config{
		Server:            "collector.example.com:9000",
		Interval:          120,
		Readings:          60,
		IMEI:              "123456789012345",
		RAT:               "LTE-M",
		UpdateFailureRate: 0.1,
		Location: config.LocationConfig{
			Type: "simulated",
			Lat:  &lat,
			Lon:  &lon,
		},
		API: config.APIConfig{Addr: "127.0.0.1:0"},
		NATS: config.NATSConfig{
			URL:      "nats://localhost:4222",
			Username: "tap",
			Password: "secret",
		},
	}
	require.NoError(t, cfg.Validate())

	st := device.NewState(
		models.DeviceIdentity{IMEI: cfg.IMEI},
		models.NetworkContext{CustomerCode: "00000000", MCC: "001", MNC: "01", RAT: "LTE-M"},
		models.LocationSample{Mode: models.LocationModeSimulated, Latitude: lat, Longitude: lon},
	)
	st.CountSent(models.EventTypeTelemetry)

	return NewDebugServer(cfg, st)
}

func TestHandleHealth(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestHandleStatus(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var snap device.Snapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &snap))
	assert.Equal(t, "123456789012345", snap.Identity.IMEI)
	assert.Equal(t, uint8(100), snap.Battery)
	assert.Equal(t, uint64(1), snap.Sent[models.EventTypeTelemetry])
}

func TestHandleConfigHidesCredentials(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/config", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "collector.example.com:9000", body["server"])
	assert.EqualValues(t, 120, body["interval"])
	assert.Equal(t, "simulated", body["location"])

	// NATS 凭据不回显
	assert.NotContains(t, rec.Body.String(), "secret")
	assert.NotContains(t, body, "nats")
}

func TestUnknownRoute(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
