package gotcc

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const subBuffer = 32

// Sub receives parameter updates from a client. Delivery is lossy: updates
// that arrive while the channel is full are dropped and counted on the
// client's stats.
type Sub struct {
	cl        *Client
	filter    []Parameter
	updates   chan Update
	closeOnce sync.Once
}

func (s *Sub) Close() {
	s.closeOnce.Do(func() {
		s.cl.fh.unregister(s)
	})
}

func (s *Sub) Chan() <-chan Update {
	return s.updates
}

// Wait blocks until the next update arrives, the timeout expires or ctx is
// cancelled.
func (s *Sub) Wait(ctx context.Context, timeout time.Duration) (Update, error) {
	select {
	case <-ctx.Done():
		return Update{}, ctx.Err()
	case u, ok := <-s.updates:
		if !ok {
			return Update{}, ErrUpdateChanClosed
		}
		return u, nil
	case <-time.After(timeout):
		return Update{}, fmt.Errorf("timeout waiting for update from %v", s.filter)
	}
}

func (s *Sub) push(u Update) bool {
	select {
	case s.updates <- u:
		return true
	default:
		return false
	}
}
