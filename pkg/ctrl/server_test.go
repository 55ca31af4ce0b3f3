package ctrl

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/roffe/gotcc"
	"github.com/roffe/gotcc/adapter"
	"github.com/rs/zerolog"
)

func startTestServer(t *testing.T) (*Client, *adapter.Virtual) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	cl := gotcc.New()
	dev, err := adapter.New("Virtual", &gotcc.AdapterConfig{})
	if err != nil {
		t.Fatalf("adapter.New: %v", err)
	}
	if err := cl.Open(ctx, dev); err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { cl.Close() })

	srv := NewServer(cl, zerolog.Nop())
	if err := srv.Listen("127.0.0.1:0"); err != nil {
		t.Fatalf("Listen: %v", err)
	}
	go srv.Serve(ctx)

	c, err := Dial(srv.Addr().String())
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c, dev.(*adapter.Virtual)
}

func TestServerEndToEnd(t *testing.T) {
	c, v := startTestServer(t)

	if err := c.Check(); err != nil {
		t.Fatalf("Check: %v", err)
	}

	if err := c.SetTimeout(gotcc.YawResponse, 5*time.Second); err != nil {
		t.Fatalf("SetTimeout: %v", err)
	}
	if d, err := c.Timeout(gotcc.YawResponse); err != nil || d != 5*time.Second {
		t.Errorf("Timeout = %v, %v, want 5s", d, err)
	}

	before := len(v.Outgoing())
	if err := c.Command(gotcc.CmdYawPosition, 45); err != nil {
		t.Fatalf("Command: %v", err)
	}
	out := v.Outgoing()
	if len(out) != before+1 {
		t.Fatalf("command never reached the bus, %d frames", len(out)-before)
	}
	if f := out[len(out)-1]; f.Identifier != uint32(gotcc.CmdYawPosition) {
		t.Errorf("command frame to %d, want %d", f.Identifier, gotcc.CmdYawPosition)
	}

	data := make([]byte, 8)
	binary.BigEndian.PutUint32(data[4:8], math.Float32bits(45.5))
	v.Inject(gotcc.NewFrame(uint32(gotcc.ParamYawPosition), data, gotcc.Incoming))

	deadline := time.Now().Add(2 * time.Second)
	for {
		val, stale, err := c.Parameter(gotcc.ParamYawPosition)
		if err != nil {
			t.Fatalf("Parameter: %v", err)
		}
		if !stale && math.Abs(val-45.5) < 1e-4 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("parameter never arrived, last %v stale=%v", val, stale)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestServerRejections(t *testing.T) {
	c, _ := startTestServer(t)

	if err := c.Command(gotcc.CmdYawPosition, 400); !errors.Is(err, ErrRequestFailed) {
		t.Errorf("out of range command = %v, want ErrRequestFailed", err)
	}
	if err := c.SetTimeout(gotcc.TimeoutClass(99), time.Second); !errors.Is(err, ErrRequestFailed) {
		t.Errorf("unknown class = %v, want ErrRequestFailed", err)
	}
	if _, _, err := c.Parameter(gotcc.Parameter(9999)); !errors.Is(err, ErrRequestFailed) {
		t.Errorf("unknown parameter = %v, want ErrRequestFailed", err)
	}
}

func TestServerNeverReceivedIsStale(t *testing.T) {
	c, _ := startTestServer(t)
	val, stale, err := c.Parameter(gotcc.ParamGlobalPitch)
	if err != nil {
		t.Fatalf("Parameter: %v", err)
	}
	if !stale || val != 0 {
		t.Errorf("Parameter = %v stale=%v, want 0 and stale", val, stale)
	}
}

func TestDispatchClosedAndUnknown(t *testing.T) {
	s := NewServer(gotcc.New(), zerolog.Nop())

	resp := s.dispatch(&Message{Type: TypeCheck})
	if resp.Status != StatusFailed {
		t.Errorf("Check on closed driver = %v, want failed", resp.Status)
	}
	resp = s.dispatch(&Message{Type: MsgType(0x7F)})
	if resp.Type != TypeUndefined || resp.Status != StatusFailed {
		t.Errorf("unknown type = %+v, want Undefined and failed", resp)
	}
}
