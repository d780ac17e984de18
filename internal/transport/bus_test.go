package transport

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendDeliversToTargetInbox(t *testing.T) {
	bus := NewBus()
	a := bus.Register("A")
	b := bus.Register("B")

	require.NoError(t, a.Send("B", Message{Kind: Prepare, TxID: "tx1"}))

	select {
	case msg := <-b.Receive():
		assert.Equal(t, Prepare, msg.Kind)
		assert.Equal(t, "tx1", msg.TxID)
		assert.Equal(t, "A", msg.From)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestBroadcastDeliversToEveryTarget(t *testing.T) {
	bus := NewBus()
	a := bus.Register("A")
	b := bus.Register("B")
	c := bus.Register("C")

	require.NoError(t, a.Broadcast([]string{"B", "C"}, Message{Kind: Commit, TxID: "tx1"}))

	for _, ep := range []*Endpoint{b, c} {
		select {
		case msg := <-ep.Receive():
			assert.Equal(t, Commit, msg.Kind)
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for broadcast message")
		}
	}
}

func TestSendToUnknownEndpointFails(t *testing.T) {
	bus := NewBus()
	a := bus.Register("A")

	err := a.Send("ghost", Message{Kind: Prepare})
	assert.ErrorIs(t, err, ErrUnknownEndpoint)
}

func TestStopClosesInboxesAndRejectsFurtherSends(t *testing.T) {
	bus := NewBus()
	a := bus.Register("A")
	b := bus.Register("B")

	bus.Stop()

	_, open := <-b.Receive()
	assert.False(t, open)

	err := a.Send("B", Message{Kind: Prepare})
	assert.ErrorIs(t, err, ErrStopped)
}

func TestRegisterTwiceSharesInbox(t *testing.T) {
	bus := NewBus()
	first := bus.Register("A")
	second := bus.Register("A")

	other := bus.Register("B")
	require.NoError(t, other.Send("A", Message{Kind: Rollback}))

	select {
	case msg := <-second.Receive():
		assert.Equal(t, Rollback, msg.Kind)
	case <-time.After(time.Second):
		t.Fatal("timed out")
	}
	_ = first
}
