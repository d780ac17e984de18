package transport

import "sync"

// defaultInboxSize mirrors the small buffered-channel sizing the
// teacher's Executor and CommitWaiter use for their own internal
// channels; it is generous enough that a coordinator fanning out to
// every write owner of a transaction never blocks on a slow peer's
// inbox filling up during a single Prepare/Commit/Rollback round.
const defaultInboxSize = 64

// Bus is an in-process message bus keyed by NodeID, generalizing the
// teacher's single local Executor/CommitWaiter channel into a per-node
// inbox so every node in an in-process cluster can address every other
// node by ID. It is the concrete Transport this module wires into the
// core's collaborator interface (§4.H).
type Bus struct {
	mu      sync.RWMutex
	inboxes map[string]chan Message
	stopped bool
}

// NewBus builds an empty bus. Nodes join by calling Register.
func NewBus() *Bus {
	return &Bus{inboxes: make(map[string]chan Message)}
}

// Register creates nodeID's inbox and returns the Endpoint it sends and
// receives through. Registering the same nodeID twice returns a fresh
// Endpoint bound to the existing inbox.
func (b *Bus) Register(nodeID string) *Endpoint {
	b.mu.Lock()
	defer b.mu.Unlock()

	inbox, ok := b.inboxes[nodeID]
	if !ok {
		inbox = make(chan Message, defaultInboxSize)
		b.inboxes[nodeID] = inbox
	}
	return &Endpoint{bus: b, selfID: nodeID, inbox: inbox}
}

// Stop closes every registered inbox. Endpoints whose Receive loops are
// still running observe a closed channel and exit.
func (b *Bus) Stop() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.stopped {
		return
	}
	b.stopped = true
	for _, inbox := range b.inboxes {
		close(inbox)
	}
}

func (b *Bus) deliver(to string, msg Message) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.stopped {
		return ErrStopped
	}
	inbox, ok := b.inboxes[to]
	if !ok {
		return ErrUnknownEndpoint
	}
	inbox <- msg
	return nil
}

// Endpoint is one node's view of the Bus: where it sends from and the
// inbox it receives on.
type Endpoint struct {
	bus    *Bus
	selfID string
	inbox  chan Message
}

// Send delivers msg to to's inbox, stamping From with this endpoint's
// node ID.
func (e *Endpoint) Send(to string, msg Message) error {
	msg.From = e.selfID
	return e.bus.deliver(to, msg)
}

// Broadcast delivers msg to every node in to.
func (e *Endpoint) Broadcast(to []string, msg Message) error {
	msg.From = e.selfID
	for _, nodeID := range to {
		if err := e.bus.deliver(nodeID, msg); err != nil {
			return err
		}
	}
	return nil
}

// Receive returns this endpoint's inbox. It closes once the bus is
// stopped.
func (e *Endpoint) Receive() <-chan Message {
	return e.inbox
}
