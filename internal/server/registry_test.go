package server

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRegistryRegister(t *testing.T) {
	t.Run("first registration", func(t *testing.T) {
		r := NewRegistry()
		c := &Client{}

		snapshot, replaced := r.Register("alice", c)
		assert.False(t, replaced, "expected no previous connection")
		assert.Equal(t, []PresenceEntry{{UserId: "alice", Activity: idleActivity}}, snapshot)

		got, ok := r.Lookup("alice")
		assert.True(t, ok, "expected alice to be registered")
		assert.Same(t, c, got, "expected lookup to return the registered connection")
	})

	t.Run("reconnect replaces previous connection", func(t *testing.T) {
		r := NewRegistry()
		c1 := &Client{}
		c2 := &Client{}

		_, replaced := r.Register("alice", c1)
		assert.False(t, replaced)

		_, replaced = r.Register("alice", c2)
		assert.True(t, replaced, "expected second registration to replace the first")

		got, _ := r.Lookup("alice")
		assert.Same(t, c2, got, "expected the newer connection to win")
		assert.Len(t, r.Clients(), 1, "expected exactly one connection for alice")
	})

	t.Run("snapshot contains all registered users", func(t *testing.T) {
		r := NewRegistry()
		r.Register("alice", &Client{})
		snapshot, _ := r.Register("bob", &Client{})

		assert.Len(t, snapshot, 2, "expected both users in snapshot")
	})
}

func TestRegistryUnregister(t *testing.T) {
	t.Run("removes current connection", func(t *testing.T) {
		r := NewRegistry()
		c := &Client{}
		r.Register("alice", c)

		userId, ok := r.Unregister(c)
		assert.True(t, ok, "expected unregister to succeed")
		assert.Equal(t, "alice", userId)

		_, ok = r.Lookup("alice")
		assert.False(t, ok, "expected alice to be gone")
	})

	t.Run("stale connection cannot remove a reconnected user", func(t *testing.T) {
		r := NewRegistry()
		c1 := &Client{}
		c2 := &Client{}
		r.Register("alice", c1)
		r.Register("alice", c2)

		_, ok := r.Unregister(c1)
		assert.False(t, ok, "expected stale unregister to be a no-op")

		got, ok := r.Lookup("alice")
		assert.True(t, ok, "expected alice to remain registered")
		assert.Same(t, c2, got)
	})

	t.Run("unknown connection", func(t *testing.T) {
		r := NewRegistry()
		_, ok := r.Unregister(&Client{})
		assert.False(t, ok, "expected unregister of unknown connection to be a no-op")
	})
}

func TestRegistrySetActivity(t *testing.T) {
	r := NewRegistry()
	c := &Client{}
	r.Register("alice", c)

	r.SetActivity("alice", "recording")
	snapshot, _ := r.Register("bob", &Client{})
	assert.Contains(t, snapshot, PresenceEntry{UserId: "alice", Activity: "recording"})

	// updates for unregistered users are dropped, not stored
	r.SetActivity("carol", "recording")
	snapshot, _ = r.Register("dave", &Client{})
	for _, entry := range snapshot {
		assert.NotEqual(t, "carol", entry.UserId, "expected no orphaned activity entry")
	}

	// activity is reset on disconnect
	r.Unregister(c)
	snapshot, _ = r.Register("alice", &Client{})
	assert.Contains(t, snapshot, PresenceEntry{UserId: "alice", Activity: idleActivity})
}

func TestRegistryClients(t *testing.T) {
	r := NewRegistry()
	assert.Empty(t, r.Clients(), "expected no clients initially")

	c1 := &Client{}
	c2 := &Client{}
	r.Register("alice", c1)
	r.Register("bob", c2)

	clients := r.Clients()
	assert.Len(t, clients, 2)
	assert.Contains(t, clients, c1)
	assert.Contains(t, clients, c2)
}
