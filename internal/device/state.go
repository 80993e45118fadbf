package device

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tracker-sim/tracker-device-sim/internal/models"
)

// ErrUpdateInProgress 同一时间只允许一个升级会话
var ErrUpdateInProgress = errors.New("update session already in progress")

// State holds the mutable simulation state. All mutation goes through
// methods holding one mutex; the scheduler's activities never touch
// fields directly.
type State struct {
	mu sync.RWMutex

	identity models.DeviceIdentity
	network  models.NetworkContext

	location models.LocationSample
	readings []models.SensorReading
	battery  uint8
	rssi     uint8

	motion models.MotionState
	update *models.UpdateSession

	framesSent     map[models.EventType]uint64
	framesReceived map[models.EventType]uint64
	bootedAt       time.Time
}

// Snapshot is a read-only copy of the state for the debug API.
type Snapshot struct {
	Identity models.DeviceIdentity           `json:"identity"`
	Network  models.NetworkContext           `json:"network"`
	Location models.LocationSample           `json:"location"`
	Battery  uint8                           `json:"battery"`
	RSSI     uint8                           `json:"rssi"`
	Motion   models.MotionState              `json:"motion"`
	Update   *models.UpdateSession           `json:"update,omitempty"`
	Pending  int                             `json:"pendingReadings"`
	Sent     map[models.EventType]uint64     `json:"framesSent"`
	Received map[models.EventType]uint64     `json:"framesReceived"`
	BootedAt time.Time                       `json:"bootedAt"`
}

// NewState creates device state with the given identity and initial location.
func NewState(identity models.DeviceIdentity, network models.NetworkContext, loc models.LocationSample) *State {
	return &State{
		identity:       identity,
		network:        network,
		location:       loc,
		battery:        100,
		rssi:           30,
		framesSent:     make(map[models.EventType]uint64),
		framesReceived: make(map[models.EventType]uint64),
		bootedAt:       time.Now(),
	}
}

// Identity returns the immutable device identity.
func (s *State) Identity() models.DeviceIdentity {
	return s.identity
}

// Network returns the immutable network context.
func (s *State) Network() models.NetworkContext {
	return s.network
}

// RecordSample stores one sensor reading and refreshes location and battery.
func (s *State) RecordSample(r models.SensorReading, loc models.LocationSample, battery uint8) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readings = append(s.readings, r)
	s.location = loc
	s.battery = battery
}

// TakeReadings returns the accumulated readings and clears the buffer.
// 遥测帧打包自上次上报以来的全部采样
func (s *State) TakeReadings() []models.SensorReading {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.readings
	s.readings = nil
	return out
}

// Location returns the current location sample.
func (s *State) Location() models.LocationSample {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.location
}

// Battery returns the current battery level.
func (s *State) Battery() uint8 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.battery
}

// RSSI returns the simulated signal strength.
func (s *State) RSSI() uint8 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rssi
}

// EnterMotion marks the device moving. Returns false when already moving,
// in which case no event must be emitted.
func (s *State) EnterMotion(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.motion.Active {
		return false
	}
	s.motion = models.MotionState{Active: true, Since: now}
	return true
}

// ExitMotion marks the device at rest, recording the accumulated steps.
// Returns false when already at rest.
func (s *State) ExitMotion(now time.Time, steps uint32) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.motion.Active {
		return false
	}
	s.motion = models.MotionState{Active: false, Since: now, Steps: steps}
	return true
}

// Motion returns the confirmed motion state.
func (s *State) Motion() models.MotionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.motion
}

// BeginUpdate opens an update session. Fails while one is in progress.
func (s *State) BeginUpdate(txn uint16, component, url string, duration time.Duration) (*models.UpdateSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.update != nil {
		return nil, ErrUpdateInProgress
	}
	session := &models.UpdateSession{
		ID:        uuid.New(),
		TxnID:     txn,
		Component: component,
		URL:       url,
		StartedAt: time.Now(),
		Duration:  duration,
		Outcome:   models.UpdateOutcomePending,
	}
	s.update = session
	return session, nil
}

// ResolveUpdate closes the active session with the given outcome and
// returns it. 会话结束即销毁
func (s *State) ResolveUpdate(outcome models.UpdateOutcome) (*models.UpdateSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.update == nil {
		return nil, errors.New("no update session in progress")
	}
	session := s.update
	session.Outcome = outcome
	s.update = nil
	return session, nil
}

// CountSent bumps the per-type sent frame counter.
func (s *State) CountSent(t models.EventType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.framesSent[t]++
}

// CountReceived bumps the per-type received frame counter.
func (s *State) CountReceived(t models.EventType) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.framesReceived[t]++
}

// Snapshot copies the state for external observers.
func (s *State) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sent := make(map[models.EventType]uint64, len(s.framesSent))
	for k, v := range s.framesSent {
		sent[k] = v
	}
	received := make(map[models.EventType]uint64, len(s.framesReceived))
	for k, v := range s.framesReceived {
		received[k] = v
	}

	var update *models.UpdateSession
	if s.update != nil {
		u := *s.update
		update = &u
	}

	return Snapshot{
		Identity: s.identity,
		Network:  s.network,
		Location: s.location,
		Battery:  s.battery,
		RSSI:     s.rssi,
		Motion:   s.motion,
		Update:   update,
		Pending:  len(s.readings),
		Sent:     sent,
		Received: received,
		BootedAt: s.bootedAt,
	}
}
