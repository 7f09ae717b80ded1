package api

import (
    "sync"
)

// SSEEvent is one request event fanned out to stream subscribers.
type SSEEvent struct {
    Type string         `json:"type"`
    Data map[string]any `json:"data"`
}

// EventBroker fans request events out to live subscribers, keyed by request id.
type EventBroker interface {
    Subscribe(requestID string) chan SSEEvent
    Unsubscribe(requestID string, ch chan SSEEvent)
    Publish(requestID string, evt SSEEvent)
}

// Broker is the in-process EventBroker.
type Broker struct {
    mu      sync.Mutex
    subs    map[string]map[chan SSEEvent]struct{} // requestId -> set of channels
}

func NewBroker() *Broker {
    return &Broker{subs: map[string]map[chan SSEEvent]struct{}{}}
}

func (b *Broker) Subscribe(requestID string) chan SSEEvent {
    ch := make(chan SSEEvent, 8)
    b.mu.Lock()
    if b.subs[requestID] == nil { b.subs[requestID] = map[chan SSEEvent]struct{}{} }
    b.subs[requestID][ch] = struct{}{}
    b.mu.Unlock()
    return ch
}

func (b *Broker) Unsubscribe(requestID string, ch chan SSEEvent) {
    b.mu.Lock()
    defer b.mu.Unlock()
    m := b.subs[requestID]
    if _, ok := m[ch]; !ok { return }
    delete(m, ch)
    if len(m) == 0 { delete(b.subs, requestID) }
    close(ch)
}

// Publish never blocks; slow subscribers miss events.
func (b *Broker) Publish(requestID string, evt SSEEvent) {
    b.mu.Lock()
    m := b.subs[requestID]
    for ch := range m {
        select { case ch <- evt: default: }
    }
    b.mu.Unlock()
}
