package gotcc

import (
	"sync"
	"time"
)

// Update is delivered to subscribers whenever a telemetry frame decodes
// successfully.
type Update struct {
	Param Parameter
	Value Value
	Time  time.Time
}

// handler takes care of faning out updates to any subs
type handler struct {
	submap     map[Parameter]map[*Sub]struct{}
	globalSubs []*Sub

	mu sync.RWMutex
}

func newHandler() *handler {
	return &handler{
		submap: make(map[Parameter]map[*Sub]struct{}),
	}
}

func (h *handler) register(sub *Sub) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(sub.filter) == 0 {
		h.globalSubs = append(h.globalSubs, sub)
		return
	}
	for _, p := range sub.filter {
		if _, ok := h.submap[p]; !ok {
			h.submap[p] = make(map[*Sub]struct{})
		}
		h.submap[p][sub] = struct{}{}
	}
}

func (h *handler) unregister(sub *Sub) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(sub.filter) == 0 {
		for i, s := range h.globalSubs {
			if s == sub {
				h.globalSubs = append(h.globalSubs[:i], h.globalSubs[i+1:]...)
				break
			}
		}
		close(sub.updates)
		return
	}
	for _, p := range sub.filter {
		if subs, ok := h.submap[p]; ok {
			if _, exists := subs[sub]; exists {
				delete(subs, sub)
				if len(subs) == 0 {
					delete(h.submap, p)
				}
			}
		}
	}
	close(sub.updates)
}

// NOTE: We send while holding RLock on h.mu. unregister acquires the write
// lock and closes sub.updates. Holding RLock guarantees the channel won't be
// closed mid-send, avoiding send-on-closed-channel panics.
func (h *handler) deliver(u Update) (dropped int) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, sub := range h.globalSubs {
		if !sub.push(u) {
			dropped++
		}
	}
	if subs, ok := h.submap[u.Param]; ok {
		for sub := range subs {
			if !sub.push(u) {
				dropped++
			}
		}
	}
	return dropped
}
