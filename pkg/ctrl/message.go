// Package ctrl exposes the driver over TCP with a fixed size binary
// protocol, so fire control software on another host can steer the
// platform without speaking CAN.
package ctrl

import (
	"encoding/binary"
	"fmt"
	"math"
)

// MessageLength is the size of every control message in both directions.
const MessageLength = 8

type MsgType uint8

const (
	TypeCheck        MsgType = 0x00
	TypeCommand      MsgType = 0x01
	TypeGetParameter MsgType = 0x02
	TypeGetTimeout   MsgType = 0x03
	TypeSetTimeout   MsgType = 0x04
	TypeUndefined    MsgType = 0xFF
)

func (t MsgType) String() string {
	switch t {
	case TypeCheck:
		return "Check"
	case TypeCommand:
		return "Command"
	case TypeGetParameter:
		return "GetParameter"
	case TypeGetTimeout:
		return "GetTimeout"
	case TypeSetTimeout:
		return "SetTimeout"
	case TypeUndefined:
		return "Undefined"
	}
	return fmt.Sprintf("MsgType(%#02x)", uint8(t))
}

type Status uint8

const (
	StatusOK     Status = 0x00
	StatusStale  Status = 0x01
	StatusFailed Status = 0x02
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "OK"
	case StatusStale:
		return "stale"
	case StatusFailed:
		return "failed"
	}
	return fmt.Sprintf("Status(%#02x)", uint8(s))
}

// Message is one control exchange unit, identical in both directions:
// type, a 16 bit argument naming the command, parameter or timeout
// class, a 32 bit value and a status byte. Value carries float32 bits
// for command and parameter messages and whole milliseconds for the
// timeout messages.
type Message struct {
	Type   MsgType
	Arg    uint16
	Value  uint32
	Status Status
}

func (m *Message) Float() float32 {
	return math.Float32frombits(m.Value)
}

func (m *Message) SetFloat(f float32) {
	m.Value = math.Float32bits(f)
}

func (m *Message) Marshal() []byte {
	out := make([]byte, MessageLength)
	out[0] = byte(m.Type)
	binary.BigEndian.PutUint16(out[1:3], m.Arg)
	binary.BigEndian.PutUint32(out[3:7], m.Value)
	out[7] = byte(m.Status)
	return out
}

func (m *Message) Unmarshal(data []byte) error {
	if len(data) != MessageLength {
		return fmt.Errorf("control message is %d bytes, got %d", MessageLength, len(data))
	}
	m.Type = MsgType(data[0])
	m.Arg = binary.BigEndian.Uint16(data[1:3])
	m.Value = binary.BigEndian.Uint32(data[3:7])
	m.Status = Status(data[7])
	return nil
}
