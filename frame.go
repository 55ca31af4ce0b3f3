package gotcc

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"

	"github.com/fatih/color"
)

// Direction marks which way a frame travelled over the bus.
type Direction uint8

const (
	Incoming Direction = iota
	Outgoing
)

type CANFrame struct {
	Identifier uint32
	Extended   bool
	RTR        bool
	Data       []byte
	Direction  Direction
}

// NewFrame creates a new CANFrame and copies the data slice
func NewFrame(identifier uint32, data []byte, dir Direction) *CANFrame {
	d := make([]byte, len(data))
	copy(d, data)
	return &CANFrame{
		Identifier: identifier,
		Data:       d,
		Direction:  dir,
	}
}

// Returns the length of the data (DLC)
func (f *CANFrame) DLC() int {
	return len(f.Data)
}

// socketcan wire constants, shared by the bridge adapter and capture files
const (
	effFlag uint32 = 0x80000000
	rtrFlag uint32 = 0x40000000
	sffMask uint32 = 0x000007FF
	effMask uint32 = 0x1FFFFFFF

	wireFrameLength = 16
)

// MarshalBinary packs the frame into the 16 byte socketcan layout: little
// endian identifier word with EFF/RTR flags, DLC, 3 pad bytes and 8 data
// bytes.
func (f *CANFrame) MarshalBinary() ([]byte, error) {
	if len(f.Data) > 8 {
		return nil, fmt.Errorf("frame 0x%03X: %d byte payload exceeds CAN limit", f.Identifier, len(f.Data))
	}
	id := f.Identifier & sffMask
	if f.Extended {
		id = f.Identifier&effMask | effFlag
	}
	if f.RTR {
		id |= rtrFlag
	}
	out := make([]byte, wireFrameLength)
	binary.LittleEndian.PutUint32(out, id)
	out[4] = byte(len(f.Data))
	copy(out[8:], f.Data)
	return out, nil
}

func (f *CANFrame) UnmarshalBinary(data []byte) error {
	if len(data) != wireFrameLength {
		return fmt.Errorf("wire frame is %d bytes, got %d", wireFrameLength, len(data))
	}
	id := binary.LittleEndian.Uint32(data)
	f.Extended = id&effFlag != 0
	f.RTR = id&rtrFlag != 0
	if f.Extended {
		f.Identifier = id & effMask
	} else {
		f.Identifier = id & sffMask
	}
	dlc := int(data[4])
	if dlc > 8 {
		return fmt.Errorf("wire frame DLC %d exceeds CAN limit", dlc)
	}
	f.Data = make([]byte, dlc)
	copy(f.Data, data[8:8+dlc])
	return nil
}

var (
	yellow = color.New(color.FgHiBlue).SprintfFunc()
	red    = color.New(color.FgRed).SprintfFunc()
	green  = color.New(color.FgGreen).SprintfFunc()
)

func (f *CANFrame) String() string {
	var out strings.Builder
	switch f.Direction {
	case Incoming:
		out.WriteString("<i> || ")
	case Outgoing:
		out.WriteString("<o> || ")
	}
	out.WriteString(fmt.Sprintf("0x%03X", f.Identifier) + " || ")
	out.WriteString(strconv.Itoa(len(f.Data)) + " || ")
	var hexView strings.Builder
	for i, b := range f.Data {
		hexView.WriteString(fmt.Sprintf("%02X", b))
		if i != len(f.Data)-1 {
			hexView.WriteString(" ")
		}
	}
	out.WriteString(fmt.Sprintf("%-23s", hexView.String()))
	out.WriteString(" || ")
	var binView strings.Builder
	for i, b := range f.Data {
		binView.WriteString(fmt.Sprintf("%08b", b))
		if i != len(f.Data)-1 {
			binView.WriteString(" ")
		}
	}
	out.WriteString(fmt.Sprintf("%-72s", binView.String()))
	out.WriteString(" || ")
	out.WriteString(onlyPrintable(f.Data))
	return out.String()
}

func (f *CANFrame) ColorString() string {
	var out strings.Builder
	switch f.Direction {
	case Incoming:
		out.WriteString("<i> || ")
	case Outgoing:
		out.WriteString("<o> || ")
	}
	out.WriteString(green("0x%03X", f.Identifier) + " || ")
	out.WriteString(strconv.Itoa(len(f.Data)) + " || ")
	var hexView strings.Builder
	for i, b := range f.Data {
		hexView.WriteString(fmt.Sprintf("%02X", b))
		if i != len(f.Data)-1 {
			hexView.WriteString(" ")
		}
	}
	out.WriteString(fmt.Sprintf("%-23s", hexView.String()))
	out.WriteString(" || ")
	var binView strings.Builder
	for i, b := range f.Data {
		binView.WriteString(fmt.Sprintf("%08b", b))
		if i != len(f.Data)-1 {
			binView.WriteString(" ")
		}
	}
	out.WriteString(red(fmt.Sprintf("%-72s", binView.String())))
	out.WriteString(" || ")
	out.WriteString(yellow(onlyPrintable(f.Data)))
	return out.String()
}

func onlyPrintable(data []byte) string {
	var out strings.Builder
	for _, b := range data {
		if b < 32 || b > 127 {
			out.WriteString(".")
		} else {
			out.WriteByte(b)
		}
	}
	return out.String()
}
