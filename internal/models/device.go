package models

import (
	"time"

	"github.com/google/uuid"
)

// DeviceIdentity represents the immutable identity of the simulated device.
type DeviceIdentity struct {
	IMEI  string `json:"imei"`
	ICCID string `json:"iccid,omitempty"`
}

// NetworkContext represents the network attachment reported at power on.
type NetworkContext struct {
	CustomerCode    string `json:"customerCode"`
	MCC             string `json:"mcc"`
	MNC             string `json:"mnc"`
	RAT             string `json:"rat"`
	SoftwareVersion string `json:"softwareVersion"`
	ModemVersion    string `json:"modemVersion"`
}

// LocationMode represents how location samples are produced.
type LocationMode string

const (
	LocationModeSimulated LocationMode = "simulated"
	LocationModeCellID    LocationMode = "cellid"
)

// LocationSample represents one position observation.
type LocationSample struct {
	Mode      LocationMode `json:"mode"`
	Latitude  float64      `json:"latitude,omitempty"`
	Longitude float64      `json:"longitude,omitempty"`
}

// SensorReading represents one simulated sensor observation.
type SensorReading struct {
	Temperature float64   `json:"temperature"`
	Humidity    float64   `json:"humidity"`
	Timestamp   time.Time `json:"timestamp"`
}

// MotionState represents the confirmed motion state of the device.
type MotionState struct {
	Active bool      `json:"active"`
	Since  time.Time `json:"since"`
	Steps  uint32    `json:"steps"`
}

// UpdateOutcome represents how an update session resolved.
type UpdateOutcome string

const (
	UpdateOutcomePending UpdateOutcome = "pending"
	UpdateOutcomeSuccess UpdateOutcome = "success"
	UpdateOutcomeFailure UpdateOutcome = "failure"
)

// UpdateSession represents one simulated firmware update. 同一时间最多一个
type UpdateSession struct {
	ID        uuid.UUID     `json:"id"`
	TxnID     uint16        `json:"txnId"`
	Component string        `json:"component"`
	URL       string        `json:"url,omitempty"`
	StartedAt time.Time     `json:"startedAt"`
	Duration  time.Duration `json:"duration"`
	Outcome   UpdateOutcome `json:"outcome"`
}
