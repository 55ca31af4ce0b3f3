package gotcc

import (
	"context"
	"encoding/binary"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeAdapter struct {
	initErr error

	mu      sync.Mutex
	sendErr error
	sent    []*CANFrame

	recv   chan *CANFrame
	errs   chan error
	closed atomic.Bool
}

var _ Adapter = (*fakeAdapter)(nil)

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{
		recv: make(chan *CANFrame, 64),
		errs: make(chan error, 8),
	}
}

func (a *fakeAdapter) Name() string { return "fake" }

func (a *fakeAdapter) Init(_ context.Context) error { return a.initErr }

func (a *fakeAdapter) Send(f *CANFrame) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.sendErr != nil {
		return a.sendErr
	}
	a.sent = append(a.sent, f)
	return nil
}

func (a *fakeAdapter) Recv() <-chan *CANFrame { return a.recv }

func (a *fakeAdapter) Err() <-chan error { return a.errs }

func (a *fakeAdapter) Close() error {
	a.closed.Store(true)
	return nil
}

func (a *fakeAdapter) setSendErr(err error) {
	a.mu.Lock()
	a.sendErr = err
	a.mu.Unlock()
}

func (a *fakeAdapter) sentFrames() []*CANFrame {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]*CANFrame, len(a.sent))
	copy(out, a.sent)
	return out
}

func (a *fakeAdapter) inject(id uint32, data []byte) {
	a.recv <- NewFrame(id, data, Incoming)
}

func floatPayload(v float32) []byte {
	data := make([]byte, 8)
	binary.BigEndian.PutUint32(data[4:8], math.Float32bits(v))
	return data
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestOpenClose(t *testing.T) {
	c := New()
	a := newFakeAdapter()
	if err := c.Open(context.Background(), a); err != nil {
		t.Fatalf("Open: %v", err)
	}
	if c.State() != StateOpen {
		t.Fatalf("State() = %v, want open", c.State())
	}

	want := len(DefaultParameters().All())
	armed := a.sentFrames()
	if len(armed) != want {
		t.Fatalf("open sent %d frames, want %d watchdog frames", len(armed), want)
	}
	for _, f := range armed {
		if f.Identifier != watchdogIdentifier {
			t.Fatalf("open sent frame to %d, want %d", f.Identifier, watchdogIdentifier)
		}
	}

	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if c.State() != StateClosed {
		t.Fatalf("State() after close = %v, want closed", c.State())
	}
	if !a.closed.Load() {
		t.Error("close did not release the adapter")
	}

	all := a.sentFrames()
	if len(all) != 2*want {
		t.Fatalf("close sent %d frames, want %d disarm frames", len(all)-want, want)
	}
	for _, f := range all[want:] {
		if ms := binary.BigEndian.Uint16(f.Data[6:8]); ms != 0 {
			t.Fatalf("disarm frame carries interval %d ms, want 0", ms)
		}
	}
}

func TestOpenNilAdapter(t *testing.T) {
	c := New()
	if err := c.Open(context.Background(), nil); !errors.Is(err, ErrNilAdapter) {
		t.Errorf("Open(nil) = %v, want ErrNilAdapter", err)
	}
}

func TestOpenWhileOpen(t *testing.T) {
	c := New()
	a := newFakeAdapter()
	if err := c.Open(context.Background(), a); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close()

	b := newFakeAdapter()
	if err := c.Open(context.Background(), b); err != nil {
		t.Fatalf("second Open: %v", err)
	}
	if c.State() != StateOpen {
		t.Error("second open flipped the state")
	}
	if len(b.sentFrames()) != 0 {
		t.Error("second open touched the new adapter")
	}
}

func TestOpenInitFailure(t *testing.T) {
	c := New()
	a := newFakeAdapter()
	a.initErr = errors.New("no such port")
	err := c.Open(context.Background(), a)
	var terr *TransportError
	if !errors.As(err, &terr) || terr.Op != "init" {
		t.Fatalf("Open = %v, want init transport error", err)
	}
	if c.State() != StateClosed {
		t.Error("client open after failed init")
	}
}

func TestOpenWatchdogPushFailure(t *testing.T) {
	c := New()
	a := newFakeAdapter()
	a.setSendErr(errors.New("bus off"))
	err := c.Open(context.Background(), a)
	var terr *TransportError
	if !errors.As(err, &terr) || terr.Op != "send" {
		t.Fatalf("Open = %v, want send transport error", err)
	}
	if c.State() != StateClosed {
		t.Error("client open after failed watchdog arm")
	}
	if !a.closed.Load() {
		t.Error("adapter not released after failed watchdog arm")
	}
}

func TestExecuteCommand(t *testing.T) {
	c := New()
	a := newFakeAdapter()
	if err := c.Open(context.Background(), a); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close()
	base := len(a.sentFrames())

	if err := c.ExecuteCommand(CmdYawPosition, 45); err != nil {
		t.Fatalf("ExecuteCommand: %v", err)
	}
	frames := a.sentFrames()
	if len(frames) != base+1 {
		t.Fatalf("sent %d frames, want 1", len(frames)-base)
	}
	f := frames[len(frames)-1]
	if f.Identifier != uint32(CmdYawPosition) {
		t.Errorf("Identifier = %d, want %d", f.Identifier, CmdYawPosition)
	}
	if f.Data[1] != byte(EncodingValue) {
		t.Errorf("discriminator = %#02x, want %#02x", f.Data[1], byte(EncodingValue))
	}
	if got := math.Float32frombits(binary.BigEndian.Uint32(f.Data[4:8])); got != 45 {
		t.Errorf("payload float = %v, want 45", got)
	}

	if err := c.ExecuteCommand(CmdFan, 1); err != nil {
		t.Fatalf("ExecuteCommand(Fan): %v", err)
	}
	frames = a.sentFrames()
	f = frames[len(frames)-1]
	if f.Identifier != uint32(CmdFan) || f.Data[1] != byte(EncodingMode) || f.Data[4] != 1 {
		t.Errorf("mode frame = id %d data % X", f.Identifier, f.Data)
	}
}

func TestExecuteCommandRejections(t *testing.T) {
	c := New()
	a := newFakeAdapter()
	if err := c.Open(context.Background(), a); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close()
	base := len(a.sentFrames())

	err := c.ExecuteCommand(CmdYawPosition, 400)
	var rerr *RangeError
	if !errors.As(err, &rerr) {
		t.Errorf("out of range command = %v, want RangeError", err)
	}
	if err := c.ExecuteCommand(Command(9999), 0); !errors.Is(err, ErrUnknownCommand) {
		t.Errorf("unknown command = %v, want ErrUnknownCommand", err)
	}
	err = c.ExecuteCommand(CmdFan, 0.5)
	var eerr *EncodeError
	if !errors.As(err, &eerr) {
		t.Errorf("fractional mode command = %v, want EncodeError", err)
	}
	if got := len(a.sentFrames()); got != base {
		t.Errorf("rejected commands put %d frames on the bus", got-base)
	}
}

func TestExecuteCommandNotOpen(t *testing.T) {
	c := New()
	if err := c.ExecuteCommand(CmdYawPosition, 0); !errors.Is(err, ErrNotOpen) {
		t.Errorf("ExecuteCommand on closed client = %v, want ErrNotOpen", err)
	}
	if _, _, err := c.Param(ParamYawPosition); !errors.Is(err, ErrNotOpen) {
		t.Errorf("Param on closed client = %v, want ErrNotOpen", err)
	}
	if err := c.Send(NewFrame(0x123, []byte{1}, Outgoing)); !errors.Is(err, ErrNotOpen) {
		t.Errorf("Send on closed client = %v, want ErrNotOpen", err)
	}
}

func TestParamDispatch(t *testing.T) {
	c := New(WithTimeout(YawResponse, 5*time.Second))
	a := newFakeAdapter()
	if err := c.Open(context.Background(), a); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close()

	sub := c.Subscribe(ParamYawPosition)
	defer sub.Close()
	a.inject(uint32(ParamYawPosition), floatPayload(45.5))

	u, err := sub.Wait(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if u.Param != ParamYawPosition {
		t.Errorf("update for %v, want YawPosition", u.Param)
	}
	if got := u.Value.Float64(); math.Abs(got-45.5) > 1e-4 {
		t.Errorf("update value = %v, want 45.5", got)
	}

	val, stale, err := c.Param(ParamYawPosition)
	if err != nil {
		t.Fatalf("Param: %v", err)
	}
	if stale {
		t.Error("parameter stale right after an update")
	}
	if got := val.Float64(); math.Abs(got-45.5) > 1e-4 {
		t.Errorf("Param value = %v, want 45.5", got)
	}
	if s := c.Stats(); s.Received == 0 {
		t.Error("received counter not bumped")
	}
}

func TestUnmappedFrameDiscarded(t *testing.T) {
	c := New()
	a := newFakeAdapter()
	if err := c.Open(context.Background(), a); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close()

	a.inject(999, floatPayload(1))
	waitFor(t, func() bool { return c.Stats().Unmapped == 1 }, "unmapped frame never counted")
	if s := c.Stats(); s.DecodeErrors != 0 {
		t.Errorf("unmapped frame counted as decode error: %+v", s)
	}
}

func TestDecodeErrorIsolation(t *testing.T) {
	c := New(WithTimeout(YawResponse, 5*time.Second))
	a := newFakeAdapter()
	if err := c.Open(context.Background(), a); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close()

	sub := c.Subscribe(ParamYawPosition)
	defer sub.Close()
	a.inject(uint32(ParamYawPosition), []byte{0x01, 0x02, 0x03})
	a.inject(uint32(ParamYawPosition), floatPayload(12))

	u, err := sub.Wait(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("loop did not survive the bad payload: %v", err)
	}
	if got := u.Value.Float64(); math.Abs(got-12) > 1e-4 {
		t.Errorf("update value = %v, want 12", got)
	}
	if s := c.Stats(); s.DecodeErrors != 1 {
		t.Errorf("DecodeErrors = %d, want 1", s.DecodeErrors)
	}
}

func TestStaleness(t *testing.T) {
	c := New()
	a := newFakeAdapter()
	if err := c.Open(context.Background(), a); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close()
	if err := c.SetTimeout(YawResponse, 100*time.Millisecond); err != nil {
		t.Fatalf("SetTimeout: %v", err)
	}

	sub := c.Subscribe(ParamYawPosition)
	defer sub.Close()
	a.inject(uint32(ParamYawPosition), floatPayload(45))
	if _, err := sub.Wait(context.Background(), time.Second); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	if _, stale, _ := c.Param(ParamYawPosition); stale {
		t.Fatal("parameter stale inside the reporting window")
	}
	time.Sleep(250 * time.Millisecond)
	val, stale, err := c.Param(ParamYawPosition)
	if err != nil {
		t.Fatalf("Param: %v", err)
	}
	if !stale {
		t.Error("parameter fresh after the reporting window passed")
	}
	if got := val.Float64(); math.Abs(got-45) > 1e-4 {
		t.Errorf("stale parameter lost its value: %v, want 45", got)
	}
}

func TestCloseIdempotentAndReopen(t *testing.T) {
	c := New(WithTimeout(YawResponse, 5*time.Second))
	a := newFakeAdapter()
	if err := c.Open(context.Background(), a); err != nil {
		t.Fatalf("Open: %v", err)
	}

	sub := c.Subscribe(ParamYawPosition)
	a.inject(uint32(ParamYawPosition), floatPayload(45))
	if _, err := sub.Wait(context.Background(), time.Second); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	sub.Close()

	if err := c.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}

	b := newFakeAdapter()
	if err := c.Open(context.Background(), b); err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer c.Close()
	val, stale, err := c.Param(ParamYawPosition)
	if err != nil {
		t.Fatalf("Param: %v", err)
	}
	if !stale || val.Kind() != KindNone {
		t.Errorf("reading survived close, got %v stale=%v", val, stale)
	}
	if err := c.ExecuteCommand(CmdYawPosition, 10); err != nil {
		t.Errorf("ExecuteCommand after reopen: %v", err)
	}
}

func TestSetTimeoutPushesWatchdogs(t *testing.T) {
	c := New()
	a := newFakeAdapter()
	if err := c.Open(context.Background(), a); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close()
	base := len(a.sentFrames())

	if err := c.SetTimeout(RoverGNSS, 100*time.Millisecond); err != nil {
		t.Fatalf("SetTimeout: %v", err)
	}
	frames := a.sentFrames()[base:]
	wantParams := []Parameter{ParamRoverHeading, ParamRoverAccuracy, ParamRoverYaw}
	if len(frames) != len(wantParams) {
		t.Fatalf("SetTimeout sent %d frames, want %d", len(frames), len(wantParams))
	}
	for i, f := range frames {
		if f.Identifier != watchdogIdentifier {
			t.Errorf("frame %d to %d, want %d", i, f.Identifier, watchdogIdentifier)
		}
		if f.Data[0] != 0x05 {
			t.Errorf("frame %d channel = %#02x, want rover 0x05", i, f.Data[0])
		}
		if got := Parameter(binary.BigEndian.Uint16(f.Data[4:6])); got != wantParams[i] {
			t.Errorf("frame %d for %v, want %v", i, got, wantParams[i])
		}
		if ms := binary.BigEndian.Uint16(f.Data[6:8]); ms != 100 {
			t.Errorf("frame %d interval = %d ms, want 100", i, ms)
		}
	}

	d, err := c.Timeout(RoverGNSS)
	if err != nil || d != 100*time.Millisecond {
		t.Errorf("Timeout = %v, %v, want 100ms", d, err)
	}
}

func TestSetTimeoutClosed(t *testing.T) {
	c := New()
	if err := c.SetTimeout(States, 75*time.Millisecond); err != nil {
		t.Fatalf("SetTimeout on closed client: %v", err)
	}
	if d, _ := c.Timeout(States); d != 75*time.Millisecond {
		t.Errorf("Timeout = %v, want 75ms", d)
	}
	if err := c.SetTimeout(TimeoutClass(99), time.Second); !errors.Is(err, ErrUnknownTimeout) {
		t.Errorf("unknown class = %v, want ErrUnknownTimeout", err)
	}
	if err := c.SetTimeout(States, 0); !errors.Is(err, ErrInvalidArgument) {
		t.Errorf("zero timeout = %v, want ErrInvalidArgument", err)
	}
	if _, err := c.Timeout(TimeoutClass(99)); !errors.Is(err, ErrUnknownTimeout) {
		t.Errorf("Timeout(99) = %v, want ErrUnknownTimeout", err)
	}
}

func TestSendTransportError(t *testing.T) {
	c := New()
	a := newFakeAdapter()
	if err := c.Open(context.Background(), a); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close()

	a.setSendErr(errors.New("tx queue full"))
	err := c.ExecuteCommand(CmdYawPosition, 1)
	var terr *TransportError
	if !errors.As(err, &terr) || terr.Op != "send" {
		t.Errorf("ExecuteCommand = %v, want send transport error", err)
	}
}

func TestReadings(t *testing.T) {
	c := New()
	rs := c.Readings()
	if want := len(DefaultParameters().All()); len(rs) != want {
		t.Fatalf("Readings() returned %d entries, want %d", len(rs), want)
	}
	for i := 1; i < len(rs); i++ {
		if rs[i-1].Param >= rs[i].Param {
			t.Fatalf("readings out of order at %d: %v before %v", i, rs[i-1].Param, rs[i].Param)
		}
	}
	for _, r := range rs {
		if !r.Stale {
			t.Errorf("%v fresh without any traffic", r.Param)
		}
	}
}

func TestSubscriberFanout(t *testing.T) {
	c := New(WithTimeout(YawResponse, 5*time.Second), WithTimeout(PitchResponse, 5*time.Second))
	a := newFakeAdapter()
	if err := c.Open(context.Background(), a); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close()

	global := c.Subscribe()
	defer global.Close()
	pitchOnly := c.Subscribe(ParamPitchPosition)

	a.inject(uint32(ParamYawPosition), floatPayload(1))
	u, err := global.Wait(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("global Wait: %v", err)
	}
	if u.Param != ParamYawPosition {
		t.Errorf("global update for %v, want YawPosition", u.Param)
	}
	select {
	case u := <-pitchOnly.Chan():
		t.Errorf("filtered sub got %v", u.Param)
	default:
	}

	a.inject(uint32(ParamPitchPosition), floatPayload(2))
	u, err = pitchOnly.Wait(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("filtered Wait: %v", err)
	}
	if u.Param != ParamPitchPosition {
		t.Errorf("filtered update for %v, want PitchPosition", u.Param)
	}

	pitchOnly.Close()
	if _, err := pitchOnly.Wait(context.Background(), time.Second); !errors.Is(err, ErrUpdateChanClosed) {
		t.Errorf("Wait on closed sub = %v, want ErrUpdateChanClosed", err)
	}
}

func TestConcurrentAccess(t *testing.T) {
	c := New(WithTimeout(YawResponse, 5*time.Second))
	a := newFakeAdapter()
	if err := c.Open(context.Background(), a); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer c.Close()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			if i%2 == 0 {
				a.inject(uint32(ParamYawPosition), floatPayload(1))
			} else {
				a.inject(uint32(ParamYawPosition), floatPayload(2))
			}
		}
	}()
	go func() {
		defer wg.Done()
		for i := 0; i < 100; i++ {
			if err := c.ExecuteCommand(CmdYawVelocity, float64(i%10)); err != nil {
				t.Errorf("ExecuteCommand: %v", err)
				return
			}
		}
	}()

	for i := 0; i < 200; i++ {
		val, _, err := c.Param(ParamYawPosition)
		if err != nil {
			t.Fatalf("Param: %v", err)
		}
		switch v := val.Float64(); v {
		case 0, 1, 2:
		default:
			t.Fatalf("torn reading: %v", v)
		}
	}
	wg.Wait()
}
