package bridge

import (
	"sync"

	"github.com/unityctl/unityctl/internal/protocol"
)

// pending is one in-flight request. done is buffered so the resolver never
// blocks on a caller that already gave up.
type pending struct {
	id      string
	command string
	done    chan *protocol.Response
}

// Correlator joins responses read off the peer socket to the callers that
// issued the matching requests. Responses may arrive in any order; the map
// is keyed only on the request ID.
type Correlator struct {
	mu       sync.Mutex
	requests map[string]*pending
}

// NewCorrelator creates an empty correlator.
func NewCorrelator() *Correlator {
	return &Correlator{requests: make(map[string]*pending)}
}

// Register inserts an in-flight request and returns its completion record.
func (c *Correlator) Register(id, command string) *pending {
	p := &pending{id: id, command: command, done: make(chan *protocol.Response, 1)}
	c.mu.Lock()
	c.requests[id] = p
	c.mu.Unlock()
	return p
}

// Resolve completes the request matching the response's ID. Returns false
// for unmatched responses (already timed out, or never ours).
func (c *Correlator) Resolve(resp *protocol.Response) bool {
	c.mu.Lock()
	p, ok := c.requests[resp.ID]
	if ok {
		delete(c.requests, resp.ID)
	}
	c.mu.Unlock()
	if !ok {
		return false
	}
	p.done <- resp
	return true
}

// Remove drops a request without resolving it (deadline path).
func (c *Correlator) Remove(id string) {
	c.mu.Lock()
	delete(c.requests, id)
	c.mu.Unlock()
}

// FailAll resolves every in-flight request with the given error code. Used
// on ungraceful disconnects and on grace-window expiry.
func (c *Correlator) FailAll(code Code, message string) {
	c.mu.Lock()
	drained := make([]*pending, 0, len(c.requests))
	for _, p := range c.requests {
		drained = append(drained, p)
	}
	c.requests = make(map[string]*pending)
	c.mu.Unlock()

	for _, p := range drained {
		p.done <- protocol.Err(p.id, string(code), message, nil)
	}
}

// PendingCount returns the number of in-flight requests.
func (c *Correlator) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.requests)
}
