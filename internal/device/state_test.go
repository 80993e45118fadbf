package device

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracker-sim/tracker-device-sim/internal/models"
)

func newTestState() *State {
	return NewState(
		models.DeviceIdentity{IMEI: "123456789012345"},
		models.NetworkContext{CustomerCode: "00000000", MCC: "001", MNC: "01", RAT: "LTE-M"},
		models.LocationSample{Mode: models.LocationModeSimulated, Latitude: 45.4, Longitude: -75.6},
	)
}

func TestMotionTransitions(t *testing.T) {
	s := newTestState()
	now := time.Now()

	// 首次进入运动
	assert.True(t, s.EnterMotion(now))
	assert.True(t, s.Motion().Active)

	// 已在运动中, 重复进入无效
	assert.False(t, s.EnterMotion(now.Add(time.Second)))

	// 退出并记录步数
	assert.True(t, s.ExitMotion(now.Add(2*time.Second), 120))
	m := s.Motion()
	assert.False(t, m.Active)
	assert.Equal(t, uint32(120), m.Steps)

	// 已静止, 重复退出无效
	assert.False(t, s.ExitMotion(now.Add(3*time.Second), 0))
}

func TestUpdateSessionExclusive(t *testing.T) {
	s := newTestState()

	session, err := s.BeginUpdate(7, "firmware", "", 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, models.UpdateOutcomePending, session.Outcome)
	assert.Equal(t, uint16(7), session.TxnID)

	_, err = s.BeginUpdate(8, "modem", "", time.Second)
	assert.ErrorIs(t, err, ErrUpdateInProgress)

	resolved, err := s.ResolveUpdate(models.UpdateOutcomeSuccess)
	require.NoError(t, err)
	assert.Equal(t, models.UpdateOutcomeSuccess, resolved.Outcome)

	// 会话已销毁
	_, err = s.ResolveUpdate(models.UpdateOutcomeFailure)
	assert.Error(t, err)

	// 销毁后可以开新会话
	_, err = s.BeginUpdate(9, "firmware", "", time.Second)
	assert.NoError(t, err)
}

func TestTakeReadingsDrains(t *testing.T) {
	s := newTestState()
	loc := models.LocationSample{Mode: models.LocationModeSimulated, Latitude: 1, Longitude: 2}

	for i := 0; i < 3; i++ {
		s.RecordSample(models.SensorReading{Temperature: 20, Humidity: 40, Timestamp: time.Now()}, loc, 90)
	}

	readings := s.TakeReadings()
	assert.Len(t, readings, 3)
	assert.Empty(t, s.TakeReadings())

	assert.Equal(t, loc, s.Location())
	assert.Equal(t, uint8(90), s.Battery())
}

func TestSnapshotIsCopy(t *testing.T) {
	s := newTestState()
	s.CountSent(models.EventTypeTelemetry)
	s.CountReceived(models.EventTypeAck)

	snap := s.Snapshot()
	assert.Equal(t, uint64(1), snap.Sent[models.EventTypeTelemetry])
	assert.Equal(t, uint64(1), snap.Received[models.EventTypeAck])

	// 修改快照不影响状态
	snap.Sent[models.EventTypeTelemetry] = 99
	assert.Equal(t, uint64(1), s.Snapshot().Sent[models.EventTypeTelemetry])

	_, err := s.BeginUpdate(1, "firmware", "", time.Second)
	require.NoError(t, err)
	snap = s.Snapshot()
	require.NotNil(t, snap.Update)
	snap.Update.Component = "changed"
	assert.Equal(t, "firmware", s.Snapshot().Update.Component)
}
