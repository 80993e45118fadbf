package protocol

import (
	"fmt"

	"github.com/tracker-sim/tracker-device-sim/pkg/trackproto"
)

// Command is a decoded server instruction. 调度器只处理这四种
type Command interface {
	TxnID() uint16
}

// Ack acknowledges a previously sent frame.
type Ack struct {
	Txn uint16
}

// ConfigRead asks the device to report its configuration.
type ConfigRead struct {
	Txn uint16
}

// ConfigWrite carries new configuration values to apply.
type ConfigWrite struct {
	Txn  uint16
	Body trackproto.ConfigBody
}

// UpdateRequest asks the device to run a firmware update.
type UpdateRequest struct {
	Txn  uint16
	Body trackproto.UpdateRequestBody
}

func (a Ack) TxnID() uint16           { return a.Txn }
func (c ConfigRead) TxnID() uint16    { return c.Txn }
func (c ConfigWrite) TxnID() uint16   { return c.Txn }
func (u UpdateRequest) TxnID() uint16 { return u.Txn }

// Decode parses an inbound datagram into a typed command. Any malformed
// input yields an error; the caller treats that as "no reply received".
func Decode(data []byte) (Command, error) {
	frame, err := trackproto.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode frame: %w", err)
	}

	if frame.IsAck() {
		return Ack{Txn: frame.Header.TxnID}, nil
	}

	switch frame.Header.Command {
	case trackproto.CmdConfigRead:
		return ConfigRead{Txn: frame.Header.TxnID}, nil

	case trackproto.CmdConfigWrite:
		body, err := trackproto.UnmarshalConfigBody(frame.Body)
		if err != nil {
			return nil, fmt.Errorf("config write body: %w", err)
		}
		return ConfigWrite{Txn: frame.Header.TxnID, Body: body}, nil

	case trackproto.CmdUpdateRequest:
		body, err := trackproto.UnmarshalUpdateRequestBody(frame.Body)
		if err != nil {
			return nil, fmt.Errorf("update request body: %w", err)
		}
		return UpdateRequest{Txn: frame.Header.TxnID, Body: body}, nil

	default:
		return nil, fmt.Errorf("unsupported command %q", frame.Header.Command.String())
	}
}
