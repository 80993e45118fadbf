package trackproto

import (
	"encoding/binary"
	"fmt"
)

// Location tags
const (
	LocationGNSS uint8 = 0
	LocationCell uint8 = 1
)

// Sensor data tags
const (
	SensorNull  uint8 = 0
	SensorMulti uint8 = 1
	SensorSteps uint8 = 2
)

// Location represents a position report, either GNSS or cell-derived.
type Location struct {
	Kind uint8

	// GNSS
	Latitude  float64
	Longitude float64

	// Cell
	MCC    string
	MNC    string
	LAC    uint16
	CellID uint32
	TA     uint8
}

// GNSSLocation builds a GNSS tagged location.
func GNSSLocation(lat, lon float64) Location {
	return Location{Kind: LocationGNSS, Latitude: lat, Longitude: lon}
}

// CellLocation builds a cell tagged location.
func CellLocation(mcc, mnc string, lac uint16, cellID uint32, ta uint8) Location {
	return Location{Kind: LocationCell, MCC: mcc, MNC: mnc, LAC: lac, CellID: cellID, TA: ta}
}

// marshalTo appends the wire form of the location.
// GNSS坐标按1e6定点编码为int32
func (l Location) marshalTo(b []byte) ([]byte, error) {
	b = append(b, l.Kind)
	switch l.Kind {
	case LocationGNSS:
		var buf [8]byte
		binary.BigEndian.PutUint32(buf[0:4], uint32(int32(l.Latitude*1e6)))
		binary.BigEndian.PutUint32(buf[4:8], uint32(int32(l.Longitude*1e6)))
		b = append(b, buf[:]...)
	case LocationCell:
		var err error
		if b, err = appendString(b, l.MCC); err != nil {
			return nil, fmt.Errorf("mcc: %w", err)
		}
		if b, err = appendString(b, l.MNC); err != nil {
			return nil, fmt.Errorf("mnc: %w", err)
		}
		var buf [7]byte
		binary.BigEndian.PutUint16(buf[0:2], l.LAC)
		binary.BigEndian.PutUint32(buf[2:6], l.CellID)
		buf[6] = l.TA
		b = append(b, buf[:]...)
	default:
		return nil, fmt.Errorf("unknown location kind %d", l.Kind)
	}
	return b, nil
}

// unmarshalLocation reads a location from the reader.
func unmarshalLocation(r *reader) (Location, error) {
	var l Location
	kind, err := r.uint8()
	if err != nil {
		return l, err
	}
	l.Kind = kind
	switch kind {
	case LocationGNSS:
		lat, err := r.uint32()
		if err != nil {
			return l, err
		}
		lon, err := r.uint32()
		if err != nil {
			return l, err
		}
		l.Latitude = float64(int32(lat)) / 1e6
		l.Longitude = float64(int32(lon)) / 1e6
	case LocationCell:
		if l.MCC, err = r.string(); err != nil {
			return l, err
		}
		if l.MNC, err = r.string(); err != nil {
			return l, err
		}
		if l.LAC, err = r.uint16(); err != nil {
			return l, err
		}
		if l.CellID, err = r.uint32(); err != nil {
			return l, err
		}
		if l.TA, err = r.uint8(); err != nil {
			return l, err
		}
	default:
		return l, fmt.Errorf("unknown location kind %d", kind)
	}
	return l, nil
}

// Reading is one temperature/humidity pair inside a multi record.
type Reading struct {
	Temperature float64
	Humidity    float64
}

// SensorData represents the sensor block of telemetry and motion frames.
type SensorData struct {
	Kind uint8

	// Multi
	Battery        uint8
	RSSI           uint8
	FirstTimestamp uint32
	Interval       uint16
	Records        []Reading

	// Steps
	Steps uint32
}

// NullSensor builds the empty sensor block used by motion start frames.
func NullSensor() SensorData {
	return SensorData{Kind: SensorNull}
}

// MultiSensor builds a batched reading block covering one reporting interval.
func MultiSensor(battery, rssi uint8, firstTS uint32, interval uint16, records []Reading) SensorData {
	return SensorData{
		Kind:           SensorMulti,
		Battery:        battery,
		RSSI:           rssi,
		FirstTimestamp: firstTS,
		Interval:       interval,
		Records:        records,
	}
}

// StepsSensor builds the step counter block carried by motion stop frames.
func StepsSensor(battery, rssi uint8, steps uint32) SensorData {
	return SensorData{Kind: SensorSteps, Battery: battery, RSSI: rssi, Steps: steps}
}

// 温湿度按x10定点编码
func (s SensorData) marshalTo(b []byte) ([]byte, error) {
	b = append(b, s.Kind)
	switch s.Kind {
	case SensorNull:
	case SensorMulti:
		if len(s.Records) > 255 {
			return nil, fmt.Errorf("too many records: %d", len(s.Records))
		}
		var buf [9]byte
		buf[0] = s.Battery
		buf[1] = s.RSSI
		binary.BigEndian.PutUint32(buf[2:6], s.FirstTimestamp)
		binary.BigEndian.PutUint16(buf[6:8], s.Interval)
		buf[8] = uint8(len(s.Records))
		b = append(b, buf[:]...)
		for _, rec := range s.Records {
			var rb [4]byte
			binary.BigEndian.PutUint16(rb[0:2], uint16(int16(rec.Temperature*10)))
			binary.BigEndian.PutUint16(rb[2:4], uint16(rec.Humidity*10))
			b = append(b, rb[:]...)
		}
	case SensorSteps:
		var buf [6]byte
		buf[0] = s.Battery
		buf[1] = s.RSSI
		binary.BigEndian.PutUint32(buf[2:6], s.Steps)
		b = append(b, buf[:]...)
	default:
		return nil, fmt.Errorf("unknown sensor kind %d", s.Kind)
	}
	return b, nil
}

func unmarshalSensorData(r *reader) (SensorData, error) {
	var s SensorData
	kind, err := r.uint8()
	if err != nil {
		return s, err
	}
	s.Kind = kind
	switch kind {
	case SensorNull:
	case SensorMulti:
		if s.Battery, err = r.uint8(); err != nil {
			return s, err
		}
		if s.RSSI, err = r.uint8(); err != nil {
			return s, err
		}
		if s.FirstTimestamp, err = r.uint32(); err != nil {
			return s, err
		}
		if s.Interval, err = r.uint16(); err != nil {
			return s, err
		}
		count, err := r.uint8()
		if err != nil {
			return s, err
		}
		s.Records = make([]Reading, 0, count)
		for i := 0; i < int(count); i++ {
			t, err := r.uint16()
			if err != nil {
				return s, err
			}
			h, err := r.uint16()
			if err != nil {
				return s, err
			}
			s.Records = append(s.Records, Reading{
				Temperature: float64(int16(t)) / 10,
				Humidity:    float64(h) / 10,
			})
		}
	case SensorSteps:
		if s.Battery, err = r.uint8(); err != nil {
			return s, err
		}
		if s.RSSI, err = r.uint8(); err != nil {
			return s, err
		}
		if s.Steps, err = r.uint32(); err != nil {
			return s, err
		}
	default:
		return s, fmt.Errorf("unknown sensor kind %d", kind)
	}
	return s, nil
}
