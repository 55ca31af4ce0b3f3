package gotcc

import (
	"context"
)

// Adapter is a CAN transport. Init acquires the underlying device and starts
// its pump goroutines. Recv delivers inbound frames until the adapter dies
// or is closed; Err carries transport faults that do not kill the adapter.
// Send may block while the transmit queue is full but must return in
// bounded time.
type Adapter interface {
	Name() string
	Init(context.Context) error
	Send(*CANFrame) error
	Recv() <-chan *CANFrame
	Err() <-chan error
	Close() error
}

// AdapterConfig carries transport settings. The callbacks are optional; the
// adapter layer fills in logging defaults when they are nil.
type AdapterConfig struct {
	Port         string
	PortBaudrate int
	// BitRate is the CAN bus bit rate in kbit/s.
	BitRate float64
	Debug   bool

	OnMessage func(string)
	OnError   func(error)
}
