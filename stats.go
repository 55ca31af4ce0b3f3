package gotcc

import (
	"fmt"
	"sync/atomic"
)

// ClientStats is a snapshot of the client's frame counters.
type ClientStats struct {
	Sent         uint64
	Received     uint64
	DecodeErrors uint64
	Unmapped     uint64
	SubDrops     uint64
}

func (st ClientStats) String() string {
	return fmt.Sprintf("sent: %d recv: %d decode errors: %d unmapped: %d sub drops: %d",
		st.Sent, st.Received, st.DecodeErrors, st.Unmapped, st.SubDrops)
}

type counters struct {
	sent         atomic.Uint64
	received     atomic.Uint64
	decodeErrors atomic.Uint64
	unmapped     atomic.Uint64
	subDrops     atomic.Uint64
}

func (c *counters) snapshot() ClientStats {
	return ClientStats{
		Sent:         c.sent.Load(),
		Received:     c.received.Load(),
		DecodeErrors: c.decodeErrors.Load(),
		Unmapped:     c.unmapped.Load(),
		SubDrops:     c.subDrops.Load(),
	}
}
