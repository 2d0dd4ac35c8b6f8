package sse

import "sync"

// bus keeps track of a channel for each HTTP client connection that needs to be
// notified when a broadcast status event occurs
type bus struct {
	chs map[chan StatusEvent]struct{}
	mu  sync.RWMutex
}

// register adds a channel that will be notified when new events are received
func (b *bus) register(ch chan StatusEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.chs[ch] = struct{}{}
}

// unregister removes a previously-registered channel, if such a channel is registered
func (b *bus) unregister(ch chan StatusEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	delete(b.chs, ch)
}

// clear removes all channels from the bus
func (b *bus) clear() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.chs = make(map[chan StatusEvent]struct{})
}

// publish takes a status event and fans it out to all currently-registered channels
func (b *bus) publish(event StatusEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.chs {
		ch <- event
	}
}
