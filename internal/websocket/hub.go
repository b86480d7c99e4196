package websocket

import (
	"context"
	"sync"

	"support-chat/internal/events"
)

type requestKind int

const (
	requestRegister requestKind = iota
	requestUnregister
	requestSubscribe
	requestUnsubscribe
)

// request is processed by the hub loop in arrival order, so a client is
// always registered before its first subscription.
type request struct {
	kind    requestKind
	client  *Client
	channel string
	ack     []byte
}

// Hub tracks the clients connected to this instance and which channels
// each one listens on. It holds no chat state.
type Hub struct {
	mu sync.RWMutex

	clients  map[string]*Client
	channels map[string]map[*Client]struct{}

	requests chan request
}

var _ events.Publisher = (*Hub)(nil)

func NewHub() *Hub {
	return &Hub{
		clients:  make(map[string]*Client),
		channels: make(map[string]map[*Client]struct{}),
		requests: make(chan request, 512),
	}
}

// Run processes hub requests until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case req := <-h.requests:
			switch req.kind {
			case requestRegister:
				h.addClient(req.client)
			case requestUnregister:
				h.removeClient(req.client)
			case requestSubscribe:
				h.subscribeToChannel(req.client, req.channel, req.ack)
			case requestUnsubscribe:
				h.unsubscribeFromChannel(req.client, req.channel, req.ack)
			}
		}
	}
}

func (h *Hub) Register(client *Client) {
	h.requests <- request{kind: requestRegister, client: client}
}

func (h *Hub) Unregister(client *Client) {
	h.requests <- request{kind: requestUnregister, client: client}
}

// Subscribe adds client to channel and then queues ack to it, if given.
func (h *Hub) Subscribe(client *Client, channel string, ack []byte) {
	h.requests <- request{kind: requestSubscribe, client: client, channel: channel, ack: ack}
}

func (h *Hub) Unsubscribe(client *Client, channel string, ack []byte) {
	h.requests <- request{kind: requestUnsubscribe, client: client, channel: channel, ack: ack}
}

// Broadcast sends payload to every client subscribed to channel.
func (h *Hub) Broadcast(channel string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.channels[channel] {
		c.SendMessage(payload)
	}
}

// BroadcastAll sends payload to every connected, authenticated client.
func (h *Hub) BroadcastAll(payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, c := range h.clients {
		if c.Authenticated() {
			c.SendMessage(payload)
		}
	}
}

// Dispatch routes a pub/sub message: presence changes reach everyone, the
// rest only the channel's subscribers.
func (h *Hub) Dispatch(channel string, payload []byte) {
	if events.IsPresenceChannel(channel) {
		h.BroadcastAll(payload)
		return
	}
	h.Broadcast(channel, payload)
}

// Publish lets the hub act as the fan-out target of a single instance
// deployment without redis.
func (h *Hub) Publish(_ context.Context, channel string, payload []byte) error {
	h.Dispatch(channel, payload)
	return nil
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *Hub) SubscriberCount(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[channel])
}

func (h *Hub) addClient(client *Client) {
	h.mu.Lock()
	h.clients[client.ID] = client
	h.mu.Unlock()
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	for _, channel := range client.Channels() {
		if subscribers, ok := h.channels[channel]; ok {
			delete(subscribers, client)
			if len(subscribers) == 0 {
				delete(h.channels, channel)
			}
		}
	}
	delete(h.clients, client.ID)
	close(client.Send)
}

func (h *Hub) subscribeToChannel(client *Client, channel string, ack []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// the client may have gone away while the request was queued
	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	if _, ok := h.channels[channel]; !ok {
		h.channels[channel] = make(map[*Client]struct{})
	}
	h.channels[channel][client] = struct{}{}
	client.subscribe(channel)
	if ack != nil {
		client.SendMessage(ack)
	}
}

func (h *Hub) unsubscribeFromChannel(client *Client, channel string, ack []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.ID]; !ok {
		return
	}
	if subscribers, ok := h.channels[channel]; ok {
		delete(subscribers, client)
		if len(subscribers) == 0 {
			delete(h.channels, channel)
		}
	}
	client.unsubscribe(channel)
	if ack != nil {
		client.SendMessage(ack)
	}
}
