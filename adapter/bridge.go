package adapter

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/roffe/gotcc"
)

func init() {
	if err := Register(&AdapterInfo{
		Name:               "Bridge",
		Description:        "Remote bus over WebSocket",
		RequiresSerialPort: false,
		New:                NewBridge,
	}); err != nil {
		panic(err)
	}
}

// Bridge reaches a bus attached to another machine through a WebSocket,
// one 16 byte socketcan frame per binary message. Port carries the
// ws:// or wss:// URL of the gateway.
type Bridge struct {
	BaseAdapter
	conn *websocket.Conn
	wmu  sync.Mutex
}

func NewBridge(cfg *gotcc.AdapterConfig) (gotcc.Adapter, error) {
	u, err := url.Parse(cfg.Port)
	if err != nil {
		return nil, fmt.Errorf("invalid bridge URL: %v", err)
	}
	switch u.Scheme {
	case "ws", "wss":
	default:
		return nil, fmt.Errorf("unsupported URL scheme: %s (use ws:// or wss://)", u.Scheme)
	}
	return &Bridge{
		BaseAdapter: NewBaseAdapter("Bridge", cfg),
	}, nil
}

func (b *Bridge) Init(ctx context.Context) error {
	dialer := websocket.Dialer{
		HandshakeTimeout: 10 * time.Second,
	}
	conn, resp, err := dialer.DialContext(ctx, b.cfg.Port, nil)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("bridge connection failed (HTTP %d): %v", resp.StatusCode, err)
		}
		return fmt.Errorf("bridge connection failed: %v", err)
	}
	b.conn = conn
	go b.readPump(ctx)
	return nil
}

func (b *Bridge) Send(f *gotcc.CANFrame) error {
	data, err := f.MarshalBinary()
	if err != nil {
		return err
	}
	b.wmu.Lock()
	defer b.wmu.Unlock()
	if err := b.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return fmt.Errorf("bridge write: %w", err)
	}
	return nil
}

func (b *Bridge) Close() error {
	b.CloseBase()
	if b.conn == nil {
		return nil
	}
	b.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return b.conn.Close()
}

func (b *Bridge) readPump(ctx context.Context) {
	for {
		messageType, data, err := b.conn.ReadMessage()
		if err != nil {
			select {
			case <-b.closeChan:
			case <-ctx.Done():
			default:
				b.SetError(fmt.Errorf("bridge read: %w", err))
			}
			return
		}
		if messageType != websocket.BinaryMessage {
			continue
		}
		f := &gotcc.CANFrame{Direction: gotcc.Incoming}
		if err := f.UnmarshalBinary(data); err != nil {
			b.cfg.OnError(fmt.Errorf("bridge frame: %w", err))
			continue
		}
		b.Deliver(f)
	}
}
