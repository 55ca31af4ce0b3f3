package adapter

import (
	"log"
	"sync"

	"github.com/roffe/gotcc"
)

// BaseAdapter carries the channel plumbing every transport shares. Embed
// it and implement Init, Send and Close on top.
type BaseAdapter struct {
	name      string
	cfg       *gotcc.AdapterConfig
	recv      chan *gotcc.CANFrame
	err       chan error
	closeChan chan struct{}
	once      sync.Once
}

func NewBaseAdapter(name string, cfg *gotcc.AdapterConfig) BaseAdapter {
	return BaseAdapter{
		name:      name,
		cfg:       cfg,
		recv:      make(chan *gotcc.CANFrame, 1024),
		err:       make(chan error, 10),
		closeChan: make(chan struct{}),
	}
}

func (base *BaseAdapter) Name() string {
	return base.name
}

func (base *BaseAdapter) Recv() <-chan *gotcc.CANFrame {
	return base.recv
}

func (base *BaseAdapter) Err() <-chan error {
	return base.err
}

// CloseBase signals the pump goroutines to stop. Safe to call more than
// once.
func (base *BaseAdapter) CloseBase() {
	base.once.Do(func() {
		close(base.closeChan)
	})
}

func (base *BaseAdapter) SetError(err error) {
	select {
	case base.err <- err:
	default:
		log.Println("adapter error channel full")
	}
}

// Deliver hands an inbound frame to the driver, dropping it when the
// receive channel is full.
func (base *BaseAdapter) Deliver(f *gotcc.CANFrame) {
	select {
	case base.recv <- f:
	default:
		base.cfg.OnError(ErrDroppedFrame)
	}
}
