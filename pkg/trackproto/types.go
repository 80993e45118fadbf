package trackproto

import (
	"fmt"
)

// ProtocolVersion is the only wire version this codec speaks.
const ProtocolVersion = 0x01

// Command is the two ASCII byte command field of every frame.
type Command [2]byte

// String returns the trimmed command text.
func (c Command) String() string {
	if c[1] == ' ' {
		return string(c[:1])
	}
	return string(c[:])
}

// 上行命令
var (
	CmdPowerOn      = Command{'P', '+'}
	CmdConfig       = Command{'C', ' '}
	CmdTelemetry    = Command{'T', ' '}
	CmdMotionStart  = Command{'M', '+'}
	CmdMotionStop   = Command{'M', '-'}
	CmdUpdateStatus = Command{'U', '-'}
)

// 下行命令
var (
	CmdAck           = Command{'A', '+'}
	CmdConfigRead    = Command{'C', ' '}
	CmdConfigWrite   = Command{'W', ' '}
	CmdUpdateRequest = Command{'U', '+'}
)

// IMEI is a 15-digit identity packed as 8 BCD bytes, padded with 0xF.
type IMEI [8]byte

// ParseIMEI packs a 15-digit string into BCD form.
func ParseIMEI(s string) (IMEI, error) {
	var imei IMEI
	if len(s) != 15 {
		return imei, fmt.Errorf("imei must be 15 digits, got %d", len(s))
	}
	for i := 0; i < 15; i++ {
		d := s[i]
		if d < '0' || d > '9' {
			return imei, fmt.Errorf("imei contains non-digit %q", d)
		}
		if i%2 == 0 {
			imei[i/2] = (d - '0') << 4
		} else {
			imei[i/2] |= d - '0'
		}
	}
	imei[7] |= 0x0F
	return imei, nil
}

// String unpacks the BCD digits.
func (i IMEI) String() string {
	var b [15]byte
	for n := 0; n < 15; n++ {
		var d byte
		if n%2 == 0 {
			d = i[n/2] >> 4
		} else {
			d = i[n/2] & 0x0F
		}
		b[n] = '0' + d
	}
	return string(b[:])
}

// RAT represents the radio access technology enumeration.
type RAT uint8

const (
	RATLTEM RAT = iota
	RATNBIoT
	RATGSM
	RATLTE
)

var ratNames = map[string]RAT{
	"LTE-M":  RATLTEM,
	"NB-IoT": RATNBIoT,
	"GSM":    RATGSM,
	"LTE":    RATLTE,
}

// ParseRAT maps a configuration string onto the wire enum.
func ParseRAT(s string) (RAT, error) {
	r, ok := ratNames[s]
	if !ok {
		return 0, fmt.Errorf("unknown RAT %q", s)
	}
	return r, nil
}

// String returns the configuration name of the RAT value.
func (r RAT) String() string {
	for name, v := range ratNames {
		if v == r {
			return name
		}
	}
	return fmt.Sprintf("RAT(%d)", uint8(r))
}

// UpdateState is the update status byte carried by U- frames.
type UpdateState uint8

const (
	UpdateStarted UpdateState = iota
	UpdateSuccess
	UpdateFailed
)

// String returns the report text of the update state.
func (u UpdateState) String() string {
	switch u {
	case UpdateStarted:
		return "started"
	case UpdateSuccess:
		return "success"
	case UpdateFailed:
		return "failed"
	default:
		return fmt.Sprintf("UpdateState(%d)", uint8(u))
	}
}
