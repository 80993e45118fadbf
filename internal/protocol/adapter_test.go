package protocol

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracker-sim/tracker-device-sim/internal/models"
	"github.com/tracker-sim/tracker-device-sim/pkg/trackproto"
)

var testNetwork = models.NetworkContext{
	CustomerCode:    "00000000",
	MCC:             "001",
	MNC:             "01",
	RAT:             "LTE-M",
	SoftwareVersion: "tracker-sim-1.0.0",
	ModemVersion:    "generic",
}

func TestNextTxnMonotonicSkipsZero(t *testing.T) {
	e, err := NewEncoder("123456789012345")
	require.NoError(t, err)

	assert.Equal(t, uint16(1), e.NextTxn())
	assert.Equal(t, uint16(2), e.NextTxn())

	// 回绕跳过 0
	e.txn = 0xFFFF
	assert.Equal(t, uint16(1), e.NextTxn())
}

func TestPowerOnFrame(t *testing.T) {
	e, err := NewEncoder("123456789012345")
	require.NoError(t, err)

	txn, frame, err := e.PowerOn(testNetwork)
	require.NoError(t, err)

	h, err := trackproto.UnmarshalHeader(frame)
	require.NoError(t, err)
	assert.Equal(t, trackproto.CmdPowerOn, h.Command)
	assert.Equal(t, txn, h.TxnID)
}

func TestTelemetryFrameCellMode(t *testing.T) {
	e, err := NewEncoder("123456789012345")
	require.NoError(t, err)

	readings := []models.SensorReading{
		{Temperature: 20.5, Humidity: 41.0, Timestamp: time.Now()},
	}
	loc := models.LocationSample{Mode: models.LocationModeCellID}

	_, frame, err := e.Telemetry(loc, testNetwork, readings, 88, 30, 60*time.Second)
	require.NoError(t, err)

	f, err := trackproto.UnmarshalDataFrame(frame[5:])
	require.NoError(t, err)
	assert.Equal(t, trackproto.LocationCell, f.Location.Kind)
	assert.Equal(t, "001", f.Location.MCC)
	require.Len(t, f.Sensor.Records, 1)
	assert.InDelta(t, 20.5, f.Sensor.Records[0].Temperature, 0.05)
}

func TestUpdateStatusUsesSessionTxn(t *testing.T) {
	e, err := NewEncoder("123456789012345")
	require.NoError(t, err)

	// 服务端发起: 沿用其事务号
	session := &models.UpdateSession{TxnID: 55, Component: "firmware"}
	txn, frame, err := e.UpdateStatus(session, trackproto.UpdateStarted, "")
	require.NoError(t, err)
	assert.Equal(t, uint16(55), txn)

	h, err := trackproto.UnmarshalHeader(frame)
	require.NoError(t, err)
	assert.Equal(t, uint16(55), h.TxnID)

	// 自发会话: 分配新事务号
	session = &models.UpdateSession{Component: "firmware"}
	txn, _, err = e.UpdateStatus(session, trackproto.UpdateStarted, "")
	require.NoError(t, err)
	assert.NotZero(t, txn)
}

func TestDecodeCommands(t *testing.T) {
	cmd, err := Decode(trackproto.MarshalAck(9))
	require.NoError(t, err)
	ack, ok := cmd.(Ack)
	require.True(t, ok)
	assert.Equal(t, uint16(9), ack.Txn)

	cmd, err = Decode(trackproto.MarshalConfigRead(10))
	require.NoError(t, err)
	_, ok = cmd.(ConfigRead)
	assert.True(t, ok)

	wb, err := trackproto.MarshalConfigWrite(11, trackproto.ConfigBody{Server: "h:1", Interval: 30, Readings: 15})
	require.NoError(t, err)
	cmd, err = Decode(wb)
	require.NoError(t, err)
	write, ok := cmd.(ConfigWrite)
	require.True(t, ok)
	assert.Equal(t, uint16(30), write.Body.Interval)

	ub, err := trackproto.MarshalUpdateRequest(12, trackproto.UpdateRequestBody{Component: "modem"})
	require.NoError(t, err)
	cmd, err = Decode(ub)
	require.NoError(t, err)
	req, ok := cmd.(UpdateRequest)
	require.True(t, ok)
	assert.Equal(t, "modem", req.Body.Component)
}

func TestDecodeGarbage(t *testing.T) {
	_, err := Decode([]byte{0x01, 'X', 'X', 0x00, 0x01})
	assert.Error(t, err)

	_, err = Decode([]byte{0xFF})
	assert.Error(t, err)

	_, err = Decode(nil)
	assert.Error(t, err)
}
