package adapter

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/roffe/gotcc"
	"github.com/roffe/gotcc/pkg/capture"
)

func init() {
	if err := Register(&AdapterInfo{
		Name:               "Playback",
		Description:        "Replays a capture file",
		RequiresSerialPort: false,
		New:                NewPlayback,
	}); err != nil {
		panic(err)
	}
}

// Playback replays a capture file at recorded pace. Port carries the
// file path. Only inbound records are replayed and sends are discarded,
// so the driver can run its normal open sequence against a recording.
type Playback struct {
	BaseAdapter
	r    *capture.Reader
	done chan struct{}
}

func NewPlayback(cfg *gotcc.AdapterConfig) (gotcc.Adapter, error) {
	return &Playback{
		BaseAdapter: NewBaseAdapter("Playback", cfg),
		done:        make(chan struct{}),
	}, nil
}

// Done is closed once the capture has been replayed to its end. It stays
// open when the replay is cancelled early.
func (p *Playback) Done() <-chan struct{} {
	return p.done
}

func (p *Playback) Init(ctx context.Context) error {
	r, err := capture.Open(p.cfg.Port)
	if err != nil {
		return err
	}
	p.r = r
	go p.replay(ctx)
	return nil
}

func (p *Playback) Send(f *gotcc.CANFrame) error {
	return nil
}

func (p *Playback) Close() error {
	p.CloseBase()
	if p.r != nil {
		return p.r.Close()
	}
	return nil
}

func (p *Playback) replay(ctx context.Context) {
	var last int64
	var n int
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.closeChan:
			return
		default:
		}
		rec, err := p.r.Next()
		if err != nil {
			if err != io.EOF {
				p.SetError(fmt.Errorf("playback: %w", err))
			}
			p.cfg.OnMessage(fmt.Sprintf("playback finished, %d frames", n))
			close(p.done)
			return
		}
		wait := time.Duration(rec.Offset-last) * time.Microsecond
		last = rec.Offset
		if wait > 0 {
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return
			case <-p.closeChan:
				return
			}
		}
		if !rec.Incoming {
			continue
		}
		p.Deliver(rec.Frame())
		n++
	}
}
