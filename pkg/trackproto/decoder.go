package trackproto

import (
	"fmt"
)

// Frame is a decoded downlink datagram: header plus raw body.
type Frame struct {
	Header Header
	Body   []byte
}

// Decode parses a raw downlink datagram. Malformed input yields an error,
// never a panic.
func Decode(data []byte) (Frame, error) {
	var f Frame
	h, err := UnmarshalHeader(data)
	if err != nil {
		return f, fmt.Errorf("header: %w", err)
	}
	f.Header = h
	f.Body = data[5:]
	return f, nil
}

// IsAck reports whether the frame is an acknowledgement. 服务端的确认帧
// 第二字节可能携带状态, 只看首字节
func (f Frame) IsAck() bool {
	return f.Header.Command[0] == 'A'
}

// UpdateRequestBody is the decoded body of a U+ frame.
type UpdateRequestBody struct {
	Component string
	URL       string
	Arguments string
}

// UnmarshalUpdateRequestBody decodes the body of a U+ frame.
func UnmarshalUpdateRequestBody(data []byte) (UpdateRequestBody, error) {
	var u UpdateRequestBody
	r := &reader{data: data}
	var err error
	if u.Component, err = r.string(); err != nil {
		return u, fmt.Errorf("component: %w", err)
	}
	if u.URL, err = r.string(); err != nil {
		return u, fmt.Errorf("url: %w", err)
	}
	if u.Arguments, err = r.string(); err != nil {
		return u, fmt.Errorf("arguments: %w", err)
	}
	return u, nil
}

// MarshalAck builds an A+ frame, used by tests standing in for the collector.
func MarshalAck(txn uint16) []byte {
	return Header{Version: ProtocolVersion, Command: CmdAck, TxnID: txn}.marshalTo(nil)
}

// MarshalConfigRead builds a C read request frame.
func MarshalConfigRead(txn uint16) []byte {
	return Header{Version: ProtocolVersion, Command: CmdConfigRead, TxnID: txn}.marshalTo(nil)
}

// MarshalConfigWrite builds a W frame carrying new configuration.
func MarshalConfigWrite(txn uint16, c ConfigBody) ([]byte, error) {
	b := Header{Version: ProtocolVersion, Command: CmdConfigWrite, TxnID: txn}.marshalTo(nil)
	var err error
	if b, err = appendString(b, c.Server); err != nil {
		return nil, fmt.Errorf("server: %w", err)
	}
	b = append(b, byte(c.Interval>>8), byte(c.Interval), byte(c.Readings>>8), byte(c.Readings))
	return b, nil
}

// MarshalUpdateRequest builds a U+ frame.
func MarshalUpdateRequest(txn uint16, u UpdateRequestBody) ([]byte, error) {
	b := Header{Version: ProtocolVersion, Command: CmdUpdateRequest, TxnID: txn}.marshalTo(nil)
	var err error
	if b, err = appendString(b, u.Component); err != nil {
		return nil, fmt.Errorf("component: %w", err)
	}
	if b, err = appendString(b, u.URL); err != nil {
		return nil, fmt.Errorf("url: %w", err)
	}
	if b, err = appendString(b, u.Arguments); err != nil {
		return nil, fmt.Errorf("arguments: %w", err)
	}
	return b, nil
}
