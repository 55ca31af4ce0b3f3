package gotcc

import (
	"errors"
	"fmt"
)

var (
	ErrNotOpen          = errors.New("interface not open")
	ErrUnknownCommand   = errors.New("unknown command")
	ErrUnknownParameter = errors.New("unknown parameter")
	ErrUnknownTimeout   = errors.New("unknown timeout class")
	ErrInvalidArgument  = errors.New("invalid argument")
	ErrNilAdapter       = errors.New("adapter is nil")
	ErrUpdateChanClosed = errors.New("update channel closed")
)

// RangeError is returned when a command value falls outside the bounds the
// device accepts for it. Nothing is transmitted when it is returned.
type RangeError struct {
	Command  Command
	Value    float64
	Min, Max float64
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("%s: value %g outside [%g, %g]", e.Command, e.Value, e.Min, e.Max)
}

// EncodeError is returned when a command value cannot be packed into a frame
// even though it passed range validation.
type EncodeError struct {
	Command Command
	Value   float64
	Reason  string
}

func (e *EncodeError) Error() string {
	return fmt.Sprintf("encode %s value %g: %s", e.Command, e.Value, e.Reason)
}

// DecodeError is produced by the receive path for frames whose identifier
// maps to a parameter but whose payload cannot be decoded. The frame is
// dropped; later frames are unaffected.
type DecodeError struct {
	Param      Parameter
	Identifier uint32
	Data       []byte
	Reason     string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s from 0x%03X [% X]: %s", e.Param, e.Identifier, e.Data, e.Reason)
}

// TransportError wraps failures reported by the adapter layer.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
