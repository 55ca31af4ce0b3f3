package adapter

import (
	"context"
	"sync"

	"github.com/roffe/gotcc"
)

func init() {
	if err := Register(&AdapterInfo{
		Name:               "Virtual",
		Description:        "In process loopback for development",
		RequiresSerialPort: false,
		New:                NewVirtual,
	}); err != nil {
		panic(err)
	}
}

// Virtual is a bus with nothing on it. Outgoing frames are recorded,
// inbound traffic is whatever the caller injects. Driver development and
// the replay tooling run on top of it.
type Virtual struct {
	BaseAdapter
	mu  sync.Mutex
	out []*gotcc.CANFrame
}

func NewVirtual(cfg *gotcc.AdapterConfig) (gotcc.Adapter, error) {
	return &Virtual{
		BaseAdapter: NewBaseAdapter("Virtual", cfg),
	}, nil
}

func (v *Virtual) Init(ctx context.Context) error {
	return nil
}

func (v *Virtual) Send(f *gotcc.CANFrame) error {
	v.mu.Lock()
	v.out = append(v.out, f)
	v.mu.Unlock()
	return nil
}

func (v *Virtual) Close() error {
	v.CloseBase()
	return nil
}

// Inject feeds a frame to the driver as if the device had sent it.
func (v *Virtual) Inject(f *gotcc.CANFrame) {
	select {
	case <-v.closeChan:
	default:
		v.Deliver(f)
	}
}

// Outgoing returns a copy of every frame sent so far.
func (v *Virtual) Outgoing() []*gotcc.CANFrame {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]*gotcc.CANFrame, len(v.out))
	copy(out, v.out)
	return out
}
