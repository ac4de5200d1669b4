package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// PeerEvent is an event published on the bus: either an unsolicited peer
// event (name from the wire catalog) or a synthetic session event.
type PeerEvent struct {
	Name    string
	Payload map[string]any
}

// Synthetic session events published by the SessionManager alongside the
// peer's own events. The dots keep them out of the peer namespace.
const (
	EventPeerConnected    = "peer.connected"
	EventPeerDisconnected = "peer.disconnected"
)

// Bool reads a boolean payload field, treating absence as false.
func (e PeerEvent) Bool(key string) bool {
	v, _ := e.Payload[key].(bool)
	return v
}

// Str reads a string payload field.
func (e PeerEvent) Str(key string) string {
	v, _ := e.Payload[key].(string)
	return v
}

// EventBus fans peer events out to orchestrator subscribers. Subscribers are
// buffered channels; a full channel drops the event for that subscriber
// rather than blocking the reader loop.
type EventBus struct {
	subMu sync.Mutex
	subs  map[chan PeerEvent]struct{}
}

// NewEventBus creates an empty bus.
func NewEventBus() *EventBus {
	return &EventBus{subs: make(map[chan PeerEvent]struct{})}
}

// Publish delivers an event to every subscriber.
func (b *EventBus) Publish(e PeerEvent) {
	b.subMu.Lock()
	for ch := range b.subs {
		select {
		case ch <- e:
		default:
			// Orchestrator windows are short; 128 slots of headroom means a
			// dropped event is a stalled flow, not a stalled bus.
		}
	}
	b.subMu.Unlock()
}

// Subscribe registers a subscriber channel. Subscribe before issuing the
// peer request whose completion events you intend to await, or the window
// between send and subscribe can miss them.
func (b *EventBus) Subscribe() chan PeerEvent {
	ch := make(chan PeerEvent, 128)
	b.subMu.Lock()
	b.subs[ch] = struct{}{}
	b.subMu.Unlock()
	return ch
}

// Unsubscribe removes a subscriber channel.
func (b *EventBus) Unsubscribe(ch chan PeerEvent) {
	b.subMu.Lock()
	delete(b.subs, ch)
	b.subMu.Unlock()
}

// Await blocks until an event matching pred arrives or ctx expires.
func (b *EventBus) Await(ctx context.Context, pred func(PeerEvent) bool) (PeerEvent, error) {
	ch := b.Subscribe()
	defer b.Unsubscribe(ch)
	return waitOn(ctx, ch, pred)
}

// waitOn scans an already-subscribed channel for the first matching event.
func waitOn(ctx context.Context, ch chan PeerEvent, pred func(PeerEvent) bool) (PeerEvent, error) {
	for {
		select {
		case e := <-ch:
			if pred(e) {
				return e, nil
			}
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return PeerEvent{}, fmt.Errorf("%w: waiting for event", ErrTimeout)
			}
			return PeerEvent{}, ctx.Err()
		}
	}
}

// named returns a predicate matching events by name.
func named(name string) func(PeerEvent) bool {
	return func(e PeerEvent) bool { return e.Name == name }
}
