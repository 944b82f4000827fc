package devstore

import "sync"

// Message is one published payload.
type Message struct {
	Channel string
	Payload string
}

// Hub fans published messages out to subscriber queues. Delivery is
// non-blocking: a subscriber whose queue is full misses the message.
type Hub struct {
	mu     sync.RWMutex
	nextID int
	subs   map[string]map[int]chan<- Message
}

func NewHub() *Hub {
	return &Hub{subs: make(map[string]map[int]chan<- Message)}
}

// Publish delivers payload to every subscriber of channel and returns the
// number of queues it was handed to.
func (h *Hub) Publish(channel, payload string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for _, q := range h.subs[channel] {
		select {
		case q <- Message{Channel: channel, Payload: payload}:
			n++
		default:
		}
	}
	return n
}

// Subscribe registers q for channel. The returned function removes it.
func (h *Hub) Subscribe(channel string, q chan<- Message) (cancel func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.subs[channel]; !ok {
		h.subs[channel] = make(map[int]chan<- Message)
	}
	id := h.nextID
	h.nextID++
	h.subs[channel][id] = q

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if byChannel, ok := h.subs[channel]; ok {
			delete(byChannel, id)
			if len(byChannel) == 0 {
				delete(h.subs, channel)
			}
		}
	}
}

// Subscribers returns the number of subscriptions on channel.
func (h *Hub) Subscribers(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs[channel])
}
