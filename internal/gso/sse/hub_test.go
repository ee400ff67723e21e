package sse

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_SendToUserOnlyReachesThatUser(t *testing.T) {
	h := NewHub(nil)
	a := &Client{ID: "a1", UserID: "alice", Events: make(chan Event, 4)}
	b := &Client{ID: "b1", UserID: "bob", Events: make(chan Event, 4)}
	h.Register(a)
	h.Register(b)

	h.PublishJSON("alice", EventNotification, map[string]string{"message": "approved"})

	require.Len(t, a.Events, 1)
	assert.Len(t, b.Events, 0)
	ev := <-a.Events
	assert.Equal(t, EventNotification, ev.EventType)
	assert.JSONEq(t, `{"message":"approved"}`, ev.Data)
}

func TestHub_BroadcastJSONReachesEveryClient(t *testing.T) {
	h := NewHub(nil)
	a := &Client{ID: "a1", UserID: "alice", Events: make(chan Event, 1)}
	b := &Client{ID: "b1", UserID: "bob", Events: make(chan Event, 1)}
	h.Register(a)
	h.Register(b)

	h.BroadcastJSON(EventRequestUpdate, map[string]string{"status": "Approved"})

	for _, c := range []*Client{a, b} {
		require.Len(t, c.Events, 1)
		ev := <-c.Events
		assert.Equal(t, EventRequestUpdate, ev.EventType)
		assert.JSONEq(t, `{"status":"Approved"}`, ev.Data)
	}
}

func TestHub_FullBufferDropsInsteadOfBlocking(t *testing.T) {
	h := NewHub(nil)
	c := &Client{ID: "c1", UserID: "u", Events: make(chan Event, 1)}
	h.Register(c)

	h.Broadcast(Event{EventType: EventRequestUpdate, Data: "1"})
	h.Broadcast(Event{EventType: EventRequestUpdate, Data: "2"})

	assert.Len(t, c.Events, 1)
}

func TestHub_UnregisterClosesChannel(t *testing.T) {
	h := NewHub(nil)
	c := &Client{ID: "c1", UserID: "u", Events: make(chan Event, 1)}
	h.Register(c)
	require.Equal(t, 1, h.ClientCount())

	h.Unregister("c1")

	_, ok := <-c.Events
	assert.False(t, ok)
	assert.Equal(t, 0, h.ClientCount())
}
