package ctrl

import (
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/roffe/gotcc"
)

// ErrRequestFailed is returned when the server answered StatusFailed.
var ErrRequestFailed = errors.New("control request failed")

const rpcTimeout = 5 * time.Second

// Client speaks the control protocol over one TCP session. Safe for
// concurrent use; requests are serialized on the wire.
type Client struct {
	mu   sync.Mutex
	conn net.Conn
}

func Dial(addr string) (*Client, error) {
	conn, err := net.DialTimeout("tcp", addr, rpcTimeout)
	if err != nil {
		return nil, fmt.Errorf("control dial: %w", err)
	}
	return &Client{conn: conn}, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// Check pings the server. A failure status means the driver behind it is
// not open.
func (c *Client) Check() error {
	resp, err := c.roundTrip(Message{Type: TypeCheck})
	if err != nil {
		return err
	}
	if resp.Status == StatusFailed {
		return fmt.Errorf("%w: driver not open", ErrRequestFailed)
	}
	return nil
}

func (c *Client) Command(cmd gotcc.Command, value float64) error {
	req := Message{Type: TypeCommand, Arg: uint16(cmd)}
	req.SetFloat(float32(value))
	resp, err := c.roundTrip(req)
	if err != nil {
		return err
	}
	if resp.Status == StatusFailed {
		return fmt.Errorf("%w: command %s", ErrRequestFailed, cmd)
	}
	return nil
}

// Parameter fetches the last value of p and whether the server considers
// it stale.
func (c *Client) Parameter(p gotcc.Parameter) (float64, bool, error) {
	resp, err := c.roundTrip(Message{Type: TypeGetParameter, Arg: uint16(p)})
	if err != nil {
		return 0, false, err
	}
	if resp.Status == StatusFailed {
		return 0, false, fmt.Errorf("%w: parameter %s", ErrRequestFailed, p)
	}
	return float64(resp.Float()), resp.Status == StatusStale, nil
}

func (c *Client) Timeout(tc gotcc.TimeoutClass) (time.Duration, error) {
	resp, err := c.roundTrip(Message{Type: TypeGetTimeout, Arg: uint16(tc)})
	if err != nil {
		return 0, err
	}
	if resp.Status == StatusFailed {
		return 0, fmt.Errorf("%w: timeout %s", ErrRequestFailed, tc)
	}
	return time.Duration(resp.Value) * time.Millisecond, nil
}

func (c *Client) SetTimeout(tc gotcc.TimeoutClass, d time.Duration) error {
	resp, err := c.roundTrip(Message{Type: TypeSetTimeout, Arg: uint16(tc), Value: uint32(d.Milliseconds())})
	if err != nil {
		return err
	}
	if resp.Status == StatusFailed {
		return fmt.Errorf("%w: timeout %s", ErrRequestFailed, tc)
	}
	return nil
}

func (c *Client) roundTrip(req Message) (Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetDeadline(time.Now().Add(rpcTimeout))
	if _, err := c.conn.Write(req.Marshal()); err != nil {
		return Message{}, fmt.Errorf("control write: %w", err)
	}
	buf := make([]byte, MessageLength)
	if _, err := io.ReadFull(c.conn, buf); err != nil {
		return Message{}, fmt.Errorf("control read: %w", err)
	}
	var resp Message
	if err := resp.Unmarshal(buf); err != nil {
		return Message{}, err
	}
	return resp, nil
}
