package models

import (
	"time"

	"github.com/google/uuid"
)

// EventLog represents one wire-level event emitted or received by the
// simulator, as published on the event tap.
type EventLog struct {
	ID        uuid.UUID `json:"id"`
	CreatedAt time.Time `json:"createdAt"`

	IMEI  string `json:"imei"`
	TxnID uint16 `json:"txnId"`

	Type        EventType `json:"type"`
	Description string    `json:"description,omitempty"`
	Bytes       int       `json:"bytes"`
}

// EventType represents event types
type EventType string

const (
	// 上行事件
	EventTypePowerOn      EventType = "POWER_ON"
	EventTypeConfigReport EventType = "CONFIG_REPORT"
	EventTypeTelemetry    EventType = "TELEMETRY"
	EventTypeMotionStart  EventType = "MOTION_START"
	EventTypeMotionStop   EventType = "MOTION_STOP"
	EventTypeUpdateStatus EventType = "UPDATE_STATUS"

	// 下行事件
	EventTypeAck           EventType = "ACK"
	EventTypeConfigRead    EventType = "CONFIG_READ"
	EventTypeConfigWrite   EventType = "CONFIG_WRITE"
	EventTypeUpdateRequest EventType = "UPDATE_REQUEST"
)
