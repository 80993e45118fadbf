package trackproto

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
)

// Header is the fixed five byte prefix of every frame.
type Header struct {
	Version byte
	Command Command
	TxnID   uint16
}

func (h Header) marshalTo(b []byte) []byte {
	b = append(b, h.Version, h.Command[0], h.Command[1])
	var txn [2]byte
	binary.BigEndian.PutUint16(txn[:], h.TxnID)
	return append(b, txn[:]...)
}

// UnmarshalHeader reads the frame header.
func UnmarshalHeader(data []byte) (Header, error) {
	var h Header
	if len(data) < 5 {
		return h, fmt.Errorf("frame too short: %d bytes", len(data))
	}
	h.Version = data[0]
	h.Command[0] = data[1]
	h.Command[1] = data[2]
	h.TxnID = binary.BigEndian.Uint16(data[3:5])
	if h.Version != ProtocolVersion {
		return h, fmt.Errorf("unsupported protocol version %d", h.Version)
	}
	return h, nil
}

// PowerOnPacket announces device boot with identity and network context.
type PowerOnPacket struct {
	IMEI            IMEI
	TxnID           uint16
	CustomerCode    string // even-length hex
	SoftwareVersion string
	ModemVersion    string
	MCC             string
	MNC             string
	RAT             RAT
}

// Marshal builds the P+ frame bytes.
func (p PowerOnPacket) Marshal() ([]byte, error) {
	code, err := hex.DecodeString(p.CustomerCode)
	if err != nil {
		return nil, fmt.Errorf("customer code: %w", err)
	}
	if len(code) != 4 {
		return nil, fmt.Errorf("customer code must be 4 bytes, got %d", len(code))
	}
	b := Header{Version: ProtocolVersion, Command: CmdPowerOn, TxnID: p.TxnID}.marshalTo(nil)
	b = append(b, p.IMEI[:]...)
	b = append(b, code...)
	if b, err = appendString(b, p.SoftwareVersion); err != nil {
		return nil, fmt.Errorf("software version: %w", err)
	}
	if b, err = appendString(b, p.ModemVersion); err != nil {
		return nil, fmt.Errorf("modem version: %w", err)
	}
	if b, err = appendString(b, p.MCC); err != nil {
		return nil, fmt.Errorf("mcc: %w", err)
	}
	if b, err = appendString(b, p.MNC); err != nil {
		return nil, fmt.Errorf("mnc: %w", err)
	}
	b = append(b, byte(p.RAT))
	return b, nil
}

// ConfigPacket reports the device's active configuration.
type ConfigPacket struct {
	IMEI     IMEI
	TxnID    uint16
	Server   string
	Interval uint16
	Readings uint16
}

// Marshal builds the C frame bytes.
func (p ConfigPacket) Marshal() ([]byte, error) {
	b := Header{Version: ProtocolVersion, Command: CmdConfig, TxnID: p.TxnID}.marshalTo(nil)
	b = append(b, p.IMEI[:]...)
	var err error
	if b, err = appendString(b, p.Server); err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}
	var buf [4]byte
	binary.BigEndian.PutUint16(buf[0:2], p.Interval)
	binary.BigEndian.PutUint16(buf[2:4], p.Readings)
	return append(b, buf[:]...), nil
}

// ConfigBody is the decoded body of a C report or W write.
type ConfigBody struct {
	Server   string
	Interval uint16
	Readings uint16
}

// UnmarshalConfigBody decodes the body of a W frame.
func UnmarshalConfigBody(data []byte) (ConfigBody, error) {
	var c ConfigBody
	r := &reader{data: data}
	var err error
	if c.Server, err = r.string(); err != nil {
		return c, fmt.Errorf("server: %w", err)
	}
	if c.Interval, err = r.uint16(); err != nil {
		return c, fmt.Errorf("interval: %w", err)
	}
	if c.Readings, err = r.uint16(); err != nil {
		return c, fmt.Errorf("readings: %w", err)
	}
	return c, nil
}

// TelemetryPacket carries a location and a batch of sensor readings.
type TelemetryPacket struct {
	IMEI      IMEI
	TxnID     uint16
	Timestamp uint32
	Location  Location
	Sensor    SensorData
}

// Marshal builds the T frame bytes.
func (p TelemetryPacket) Marshal() ([]byte, error) {
	return marshalDataFrame(CmdTelemetry, p.IMEI, p.TxnID, p.Timestamp, p.Location, p.Sensor)
}

// MotionStartPacket reports a confirmed transition into motion.
type MotionStartPacket struct {
	IMEI      IMEI
	TxnID     uint16
	Timestamp uint32
	Location  Location
	Sensor    SensorData
}

// Marshal builds the M+ frame bytes.
func (p MotionStartPacket) Marshal() ([]byte, error) {
	return marshalDataFrame(CmdMotionStart, p.IMEI, p.TxnID, p.Timestamp, p.Location, p.Sensor)
}

// MotionStopPacket reports a confirmed return to rest, with a step count.
type MotionStopPacket struct {
	IMEI      IMEI
	TxnID     uint16
	Timestamp uint32
	Location  Location
	Sensor    SensorData
}

// Marshal builds the M- frame bytes.
func (p MotionStopPacket) Marshal() ([]byte, error) {
	return marshalDataFrame(CmdMotionStop, p.IMEI, p.TxnID, p.Timestamp, p.Location, p.Sensor)
}

// UpdateStatusPacket reports firmware update progress.
type UpdateStatusPacket struct {
	IMEI      IMEI
	TxnID     uint16
	Component string
	State     UpdateState
	Detail    string
}

// Marshal builds the U- frame bytes.
func (p UpdateStatusPacket) Marshal() ([]byte, error) {
	b := Header{Version: ProtocolVersion, Command: CmdUpdateStatus, TxnID: p.TxnID}.marshalTo(nil)
	b = append(b, p.IMEI[:]...)
	var err error
	if b, err = appendString(b, p.Component); err != nil {
		return nil, fmt.Errorf("component: %w", err)
	}
	b = append(b, byte(p.State))
	if b, err = appendString(b, p.Detail); err != nil {
		return nil, fmt.Errorf("detail: %w", err)
	}
	return b, nil
}

// 数据帧公共布局: 头 + IMEI + 时间戳 + 位置 + 传感器
func marshalDataFrame(cmd Command, imei IMEI, txn uint16, ts uint32, loc Location, sensor SensorData) ([]byte, error) {
	b := Header{Version: ProtocolVersion, Command: cmd, TxnID: txn}.marshalTo(nil)
	b = append(b, imei[:]...)
	var tsb [4]byte
	binary.BigEndian.PutUint32(tsb[:], ts)
	b = append(b, tsb[:]...)
	var err error
	if b, err = loc.marshalTo(b); err != nil {
		return nil, fmt.Errorf("location: %w", err)
	}
	if b, err = sensor.marshalTo(b); err != nil {
		return nil, fmt.Errorf("sensor: %w", err)
	}
	return b, nil
}

// DataFrame is the decoded form of a T / M+ / M- body, used by tests and
// collector-side tooling.
type DataFrame struct {
	IMEI      IMEI
	Timestamp uint32
	Location  Location
	Sensor    SensorData
}

// UnmarshalDataFrame decodes the body of a data frame (after the header).
func UnmarshalDataFrame(body []byte) (DataFrame, error) {
	var f DataFrame
	r := &reader{data: body}
	imei, err := r.bytes(8)
	if err != nil {
		return f, fmt.Errorf("imei: %w", err)
	}
	copy(f.IMEI[:], imei)
	if f.Timestamp, err = r.uint32(); err != nil {
		return f, fmt.Errorf("timestamp: %w", err)
	}
	if f.Location, err = unmarshalLocation(r); err != nil {
		return f, fmt.Errorf("location: %w", err)
	}
	if f.Sensor, err = unmarshalSensorData(r); err != nil {
		return f, fmt.Errorf("sensor: %w", err)
	}
	return f, nil
}

func appendString(b []byte, s string) ([]byte, error) {
	if len(s) > 255 {
		return nil, fmt.Errorf("string too long: %d bytes", len(s))
	}
	b = append(b, uint8(len(s)))
	return append(b, s...), nil
}

// reader walks a byte slice with bounds checks.
type reader struct {
	data []byte
	pos  int
}

func (r *reader) bytes(n int) ([]byte, error) {
	if r.pos+n > len(r.data) {
		return nil, fmt.Errorf("truncated at offset %d, need %d bytes", r.pos, n)
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *reader) uint8() (uint8, error) {
	b, err := r.bytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *reader) uint16() (uint16, error) {
	b, err := r.bytes(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *reader) uint32() (uint32, error) {
	b, err := r.bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *reader) string() (string, error) {
	n, err := r.uint8()
	if err != nil {
		return "", err
	}
	b, err := r.bytes(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}
