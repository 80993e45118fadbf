package protocol

import (
	"fmt"
	"sync"
	"time"

	"github.com/tracker-sim/tracker-device-sim/internal/models"
	"github.com/tracker-sim/tracker-device-sim/pkg/trackproto"
)

// 小区占位参数, 原始设备不带GNSS时上报固定小区
const (
	placeholderLAC    = 0x1234
	placeholderCellID = 0x5678
	placeholderTA     = 30
)

// Encoder translates domain events into wire frames. It owns the
// transaction counter; no other component numbers frames.
type Encoder struct {
	mu   sync.Mutex
	imei trackproto.IMEI
	txn  uint16
}

// NewEncoder creates an encoder for the given IMEI.
func NewEncoder(imei string) (*Encoder, error) {
	parsed, err := trackproto.ParseIMEI(imei)
	if err != nil {
		return nil, fmt.Errorf("parse imei: %w", err)
	}
	return &Encoder{imei: parsed}, nil
}

// NextTxn returns the next transaction id. 回绕时跳过0
func (e *Encoder) NextTxn() uint16 {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.txn++
	if e.txn == 0 {
		e.txn = 1
	}
	return e.txn
}

// PowerOn builds the boot announcement frame.
func (e *Encoder) PowerOn(network models.NetworkContext) (uint16, []byte, error) {
	rat, err := trackproto.ParseRAT(network.RAT)
	if err != nil {
		return 0, nil, fmt.Errorf("power on: %w", err)
	}
	txn := e.NextTxn()
	b, err := trackproto.PowerOnPacket{
		IMEI:            e.imei,
		TxnID:           txn,
		CustomerCode:    network.CustomerCode,
		SoftwareVersion: network.SoftwareVersion,
		ModemVersion:    network.ModemVersion,
		MCC:             network.MCC,
		MNC:             network.MNC,
		RAT:             rat,
	}.Marshal()
	if err != nil {
		return 0, nil, fmt.Errorf("power on: %w", err)
	}
	return txn, b, nil
}

// ConfigReport builds a configuration report. When replyTo is non-zero the
// frame answers a server request with the server's transaction id.
func (e *Encoder) ConfigReport(server string, interval, readings int, replyTo uint16) (uint16, []byte, error) {
	txn := replyTo
	if txn == 0 {
		txn = e.NextTxn()
	}
	b, err := trackproto.ConfigPacket{
		IMEI:     e.imei,
		TxnID:    txn,
		Server:   server,
		Interval: uint16(interval),
		Readings: uint16(readings),
	}.Marshal()
	if err != nil {
		return 0, nil, fmt.Errorf("config report: %w", err)
	}
	return txn, b, nil
}

// Telemetry builds a telemetry frame from the accumulated readings.
func (e *Encoder) Telemetry(loc models.LocationSample, network models.NetworkContext,
	readings []models.SensorReading, battery, rssi uint8, readingInterval time.Duration) (uint16, []byte, error) {

	records := make([]trackproto.Reading, 0, len(readings))
	firstTS := uint32(time.Now().Unix())
	for i, r := range readings {
		if i == 0 {
			firstTS = uint32(r.Timestamp.Unix())
		}
		records = append(records, trackproto.Reading{
			Temperature: r.Temperature,
			Humidity:    r.Humidity,
		})
	}

	sensor := trackproto.MultiSensor(battery, rssi, firstTS,
		uint16(readingInterval/time.Second), records)

	txn := e.NextTxn()
	b, err := trackproto.TelemetryPacket{
		IMEI:      e.imei,
		TxnID:     txn,
		Timestamp: uint32(time.Now().Unix()),
		Location:  e.wireLocation(loc, network),
		Sensor:    sensor,
	}.Marshal()
	if err != nil {
		return 0, nil, fmt.Errorf("telemetry: %w", err)
	}
	return txn, b, nil
}

// MotionStart builds an M+ frame.
func (e *Encoder) MotionStart(loc models.LocationSample, network models.NetworkContext) (uint16, []byte, error) {
	txn := e.NextTxn()
	b, err := trackproto.MotionStartPacket{
		IMEI:      e.imei,
		TxnID:     txn,
		Timestamp: uint32(time.Now().Unix()),
		Location:  e.wireLocation(loc, network),
		Sensor:    trackproto.NullSensor(),
	}.Marshal()
	if err != nil {
		return 0, nil, fmt.Errorf("motion start: %w", err)
	}
	return txn, b, nil
}

// MotionStop builds an M- frame carrying the episode's step count.
func (e *Encoder) MotionStop(loc models.LocationSample, network models.NetworkContext,
	battery, rssi uint8, steps uint32) (uint16, []byte, error) {

	txn := e.NextTxn()
	b, err := trackproto.MotionStopPacket{
		IMEI:      e.imei,
		TxnID:     txn,
		Timestamp: uint32(time.Now().Unix()),
		Location:  e.wireLocation(loc, network),
		Sensor:    trackproto.StepsSensor(battery, rssi, steps),
	}.Marshal()
	if err != nil {
		return 0, nil, fmt.Errorf("motion stop: %w", err)
	}
	return txn, b, nil
}

// UpdateStatus builds a U- frame for the given session state.
func (e *Encoder) UpdateStatus(session *models.UpdateSession, state trackproto.UpdateState, detail string) (uint16, []byte, error) {
	// 服务端发起的会话沿用其事务号, 自发会话用自己的
	txn := session.TxnID
	if txn == 0 {
		txn = e.NextTxn()
	}
	b, err := trackproto.UpdateStatusPacket{
		IMEI:      e.imei,
		TxnID:     txn,
		Component: session.Component,
		State:     state,
		Detail:    detail,
	}.Marshal()
	if err != nil {
		return 0, nil, fmt.Errorf("update status: %w", err)
	}
	return txn, b, nil
}

func (e *Encoder) wireLocation(loc models.LocationSample, network models.NetworkContext) trackproto.Location {
	if loc.Mode == models.LocationModeCellID {
		return trackproto.CellLocation(network.MCC, network.MNC,
			placeholderLAC, placeholderCellID, placeholderTA)
	}
	return trackproto.GNSSLocation(loc.Latitude, loc.Longitude)
}
