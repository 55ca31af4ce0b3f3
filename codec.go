package gotcc

import (
	"encoding/binary"
	"math"
	"time"
)

// Device frames always carry 8 data bytes.
const payloadLength = 8

// Reporting watchdog config frames are addressed to a fixed identifier.
const watchdogIdentifier = 2000

// EncodeCommand packs a command value into an 8 byte frame addressed to the
// command's identifier. The encoding discriminator goes to data[1]; value
// commands carry a big endian float32 at data[4:8], mode commands a single
// byte at data[4]. Range validation is the command set's job; the codec only
// rejects values it cannot represent.
func EncodeCommand(cmd Command, spec CommandSpec, value float64) (*CANFrame, error) {
	if math.IsNaN(value) || math.IsInf(value, 0) {
		return nil, &EncodeError{Command: cmd, Value: value, Reason: "value is not finite"}
	}
	data := make([]byte, payloadLength)
	data[1] = byte(spec.Encoding)
	switch spec.Encoding {
	case EncodingValue:
		binary.BigEndian.PutUint32(data[4:8], math.Float32bits(float32(value)))
	case EncodingMode:
		if value != math.Trunc(value) {
			return nil, &EncodeError{Command: cmd, Value: value, Reason: "mode value must be integral"}
		}
		if value < 0 || value > 255 {
			return nil, &EncodeError{Command: cmd, Value: value, Reason: "mode value exceeds one byte"}
		}
		data[4] = byte(value)
	default:
		return nil, &EncodeError{Command: cmd, Value: value, Reason: "unknown encoding"}
	}
	return NewFrame(uint32(cmd), data, Outgoing), nil
}

// DecodeParameter unpacks a telemetry frame according to the parameter's
// decode kind. Non finite float payloads are the device's invalid-reading
// sentinel and are rejected.
func DecodeParameter(p Parameter, spec ParameterSpec, f *CANFrame) (Value, error) {
	if len(f.Data) != payloadLength {
		return Value{}, &DecodeError{Param: p, Identifier: f.Identifier, Data: f.Data, Reason: "payload is not 8 bytes"}
	}
	switch spec.Decode {
	case DecodeFloat32:
		v := float64(math.Float32frombits(binary.BigEndian.Uint32(f.Data[4:8])))
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Value{}, &DecodeError{Param: p, Identifier: f.Identifier, Data: f.Data, Reason: "non finite float"}
		}
		return floatValue(v), nil
	case DecodeUint8:
		return intValue(int64(f.Data[4])), nil
	case DecodeInt32:
		return intValue(int64(int32(binary.BigEndian.Uint32(f.Data[4:8])))), nil
	case DecodeScaled:
		if spec.Scale == 0 {
			return Value{}, &DecodeError{Param: p, Identifier: f.Identifier, Data: f.Data, Reason: "scaled parameter without scale"}
		}
		raw := int32(binary.BigEndian.Uint32(f.Data[4:8]))
		return floatValue(float64(raw) / spec.Scale), nil
	case DecodeBool:
		return boolValue(f.Data[4] != 0), nil
	default:
		return Value{}, &DecodeError{Param: p, Identifier: f.Identifier, Data: f.Data, Reason: "unknown decode kind"}
	}
}

// encodeWatchdog builds the reporting watchdog config frame for one
// parameter: channel code, the fixed 0x0C 0x05 preamble, then the parameter
// identifier and the interval in milliseconds, both big endian uint16.
// Intervals clamp to the uint16 millisecond range.
func encodeWatchdog(channel byte, p Parameter, d time.Duration) *CANFrame {
	ms := d.Milliseconds()
	if ms > math.MaxUint16 {
		ms = math.MaxUint16
	}
	if ms < 0 {
		ms = 0
	}
	data := make([]byte, payloadLength)
	data[0] = channel
	data[1] = 0x0C
	data[2] = 0x05
	binary.BigEndian.PutUint16(data[4:6], uint16(p))
	binary.BigEndian.PutUint16(data[6:8], uint16(ms))
	return NewFrame(watchdogIdentifier, data, Outgoing)
}
