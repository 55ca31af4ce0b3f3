// Package gotcc is a CAN bus driver for the Tactical Control Component, a
// pan/tilt weapon station platform. It encodes typed commands into frames,
// decodes telemetry frames into typed parameter values and tracks how fresh
// each parameter is.
package gotcc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// State of the interface lifecycle.
type State uint8

const (
	StateClosed State = iota
	StateOpen
)

func (s State) String() string {
	if s == StateOpen {
		return "open"
	}
	return "closed"
}

// closeWait bounds how long Close waits for the receive loop to stop.
const closeWait = time.Second

// Client drives one device over one adapter. All methods are safe for
// concurrent use.
type Client struct {
	log      zerolog.Logger
	commands *CommandSet
	params   *ParameterSet
	onFrame  func(*CANFrame)

	timeoutOverrides map[TimeoutClass]time.Duration

	mu    sync.RWMutex
	state State
	dev   Adapter
	quit  chan struct{}
	done  chan struct{}

	store *store
	fh    *handler
	stats counters
}

// Option configures a Client.
type Option func(*Client)

// WithLogger routes the client's structured events to l. The default logger
// discards everything.
func WithLogger(l zerolog.Logger) Option {
	return func(c *Client) {
		c.log = l
	}
}

// WithCommands replaces the default command table.
func WithCommands(cs *CommandSet) Option {
	return func(c *Client) {
		c.commands = cs
	}
}

// WithParameters replaces the default telemetry table.
func WithParameters(ps *ParameterSet) Option {
	return func(c *Client) {
		c.params = ps
	}
}

// WithFrameHook registers fn to observe every frame the client sends or
// receives, mapped or not. Meant for monitors; fn runs on the receive loop
// and must not block.
func WithFrameHook(fn func(*CANFrame)) Option {
	return func(c *Client) {
		c.onFrame = fn
	}
}

// WithTimeout overrides the startup staleness threshold for one class.
// Non-positive durations and unknown classes are ignored.
func WithTimeout(tc TimeoutClass, d time.Duration) Option {
	return func(c *Client) {
		if d <= 0 || !tc.valid() {
			return
		}
		if c.timeoutOverrides == nil {
			c.timeoutOverrides = make(map[TimeoutClass]time.Duration)
		}
		c.timeoutOverrides[tc] = d
	}
}

// New builds a closed client. Open it with an adapter to start talking to
// the device.
func New(opts ...Option) *Client {
	c := &Client{
		log:      zerolog.Nop(),
		commands: DefaultCommands(),
		params:   DefaultParameters(),
		fh:       newHandler(),
		store:    newStore(),
	}
	for _, opt := range opts {
		opt(c)
	}
	for tc, d := range c.timeoutOverrides {
		c.store.setTimeout(tc, d)
	}
	return c
}

// State reports whether the interface is open.
func (c *Client) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// Open acquires the adapter, clears all parameter slots, starts the receive
// loop and arms the device's reporting watchdogs. The client stays closed
// when any step fails. Opening an open client is a no-op.
func (c *Client) Open(ctx context.Context, dev Adapter) error {
	if dev == nil {
		return ErrNilAdapter
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateOpen {
		c.log.Warn().Msg("interface already open")
		return nil
	}
	if err := dev.Init(ctx); err != nil {
		return &TransportError{Op: "init", Err: err}
	}
	c.store.reset()
	c.dev = dev
	c.quit = make(chan struct{})
	c.done = make(chan struct{})
	go c.recvLoop(ctx, dev, c.quit, c.done)
	if err := c.pushWatchdogs(dev, false); err != nil {
		close(c.quit)
		<-c.done
		dev.Close()
		c.dev = nil
		return err
	}
	c.state = StateOpen
	c.log.Info().Str("adapter", dev.Name()).Msg("interface open")
	return nil
}

// Close disarms the device watchdogs, stops the receive loop, releases the
// adapter and clears all parameter slots. Closing a closed client is a
// no-op.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateOpen {
		return nil
	}
	if err := c.pushWatchdogs(c.dev, true); err != nil {
		c.log.Warn().Err(err).Msg("failed to disarm watchdogs")
	}
	close(c.quit)
	select {
	case <-c.done:
	case <-time.After(closeWait):
		c.log.Warn().Msg("receive loop did not stop in time")
	}
	err := c.dev.Close()
	c.dev = nil
	c.state = StateClosed
	c.store.reset()
	c.log.Info().Msg("interface closed")
	if err != nil {
		return &TransportError{Op: "close", Err: err}
	}
	return nil
}

// ExecuteCommand validates value against the command's range and transmits
// the encoded frame. Nothing is sent when validation fails.
func (c *Client) ExecuteCommand(cmd Command, value float64) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state != StateOpen {
		return ErrNotOpen
	}
	spec, err := c.commands.Get(cmd)
	if err != nil {
		return err
	}
	if !spec.InRange(value) {
		return &RangeError{Command: cmd, Value: value, Min: spec.Min, Max: spec.Max}
	}
	f, err := EncodeCommand(cmd, spec, value)
	if err != nil {
		return err
	}
	return c.sendFrame(c.dev, f)
}

// Param returns the last received value for p and whether it is stale under
// its class threshold. A parameter that never arrived reads as the zero
// Value and stale. Staleness is advisory; the value is returned regardless.
func (c *Client) Param(p Parameter) (Value, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state != StateOpen {
		return Value{}, false, ErrNotOpen
	}
	spec, err := c.params.Get(p)
	if err != nil {
		return Value{}, false, err
	}
	r := c.store.reading(p, spec.Class)
	return r.Value, r.Stale, nil
}

// Readings snapshots every parameter slot ordered by identifier, regardless
// of interface state.
func (c *Client) Readings() []Reading {
	all := c.params.All()
	out := make([]Reading, 0, len(all))
	for _, p := range all {
		spec, err := c.params.Get(p)
		if err != nil {
			continue
		}
		out = append(out, c.store.reading(p, spec.Class))
	}
	return out
}

// SetTimeout sets the staleness threshold for a class. While the interface
// is open the device's reporting watchdogs for the class are re-armed with
// the new interval as well. The threshold applies to subsequent queries
// only; stored values keep their timestamps.
func (c *Client) SetTimeout(tc TimeoutClass, d time.Duration) error {
	if !tc.valid() {
		return fmt.Errorf("%w: %s", ErrUnknownTimeout, tc)
	}
	if d <= 0 {
		return fmt.Errorf("%w: timeout %v", ErrInvalidArgument, d)
	}
	c.store.setTimeout(tc, d)
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state != StateOpen {
		return nil
	}
	for _, p := range c.params.OfClass(tc) {
		if err := c.sendFrame(c.dev, encodeWatchdog(tc.watchdogChannel(), p, d)); err != nil {
			return err
		}
	}
	return nil
}

// Timeout returns the staleness threshold of a class.
func (c *Client) Timeout(tc TimeoutClass) (time.Duration, error) {
	if !tc.valid() {
		return 0, fmt.Errorf("%w: %s", ErrUnknownTimeout, tc)
	}
	return c.store.timeout(tc), nil
}

// Send transmits a raw frame, bypassing the command codec. Meant for
// diagnostics tooling.
func (c *Client) Send(f *CANFrame) error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.state != StateOpen {
		return ErrNotOpen
	}
	return c.sendFrame(c.dev, f)
}

// Subscribe registers for updates of the given parameters, or of every
// parameter when none are named. Close the sub when done with it.
func (c *Client) Subscribe(params ...Parameter) *Sub {
	sub := &Sub{
		cl:      c,
		filter:  params,
		updates: make(chan Update, subBuffer),
	}
	c.fh.register(sub)
	return sub
}

// Stats returns a snapshot of the frame counters.
func (c *Client) Stats() ClientStats {
	return c.stats.snapshot()
}

func (c *Client) sendFrame(dev Adapter, f *CANFrame) error {
	if err := dev.Send(f); err != nil {
		return &TransportError{Op: "send", Err: err}
	}
	c.stats.sent.Add(1)
	if c.onFrame != nil {
		c.onFrame(f)
	}
	c.log.Debug().Uint32("id", f.Identifier).Hex("data", f.Data).Msg("tx")
	return nil
}

// pushWatchdogs tells the device how often each parameter must be reported.
// With zero set every watchdog is disarmed instead, which is the close path.
func (c *Client) pushWatchdogs(dev Adapter, zero bool) error {
	for _, tc := range TimeoutClasses() {
		var d time.Duration
		if !zero {
			d = c.store.timeout(tc)
		}
		for _, p := range c.params.OfClass(tc) {
			if err := c.sendFrame(dev, encodeWatchdog(tc.watchdogChannel(), p, d)); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Client) recvLoop(ctx context.Context, dev Adapter, quit <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	recv := dev.Recv()
	errs := dev.Err()
	for {
		select {
		case <-quit:
			return
		case <-ctx.Done():
			return
		case err := <-errs:
			c.log.Warn().Err(err).Msg("adapter error")
		case f, ok := <-recv:
			if !ok {
				c.log.Error().Msg("adapter receive channel closed")
				return
			}
			c.handleFrame(f)
		}
	}
}

// handleFrame dispatches one inbound frame. Frames for identifiers outside
// the parameter table are dropped silently; frames that fail to decode are
// logged and dropped so one bad payload never poisons the stream.
func (c *Client) handleFrame(f *CANFrame) {
	c.stats.received.Add(1)
	if c.onFrame != nil {
		c.onFrame(f)
	}
	p, spec, ok := c.params.ByFrameID(f.Identifier)
	if !ok {
		c.stats.unmapped.Add(1)
		return
	}
	val, err := DecodeParameter(p, spec, f)
	if err != nil {
		c.stats.decodeErrors.Add(1)
		c.log.Warn().Err(err).Msg("dropped frame")
		return
	}
	t := c.store.update(p, val)
	c.log.Debug().Stringer("param", p).Stringer("value", val).Msg("rx")
	if dropped := c.fh.deliver(Update{Param: p, Value: val, Time: t}); dropped > 0 {
		c.stats.subDrops.Add(uint64(dropped))
	}
}
