package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/duetapp/duet-server/internal/database"
	"github.com/duetapp/duet-server/internal/push"
	"github.com/duetapp/duet-server/internal/stats"
	"github.com/duetapp/duet-server/internal/testutil"
	"github.com/duetapp/duet-server/internal/types"
)

// newTestRelayServer creates a RelayServer wired to mocks for testing
func newTestRelayServer(t *testing.T, db database.Repository, notifier Notifier, su *stats.MockStatsUpdater) *RelayServer {
	t.Helper()
	su.On("RegisterMetric", mock.Anything).Times(5)

	logger := testutil.TestLogger(t)
	s, err := NewRelayServer(logger, db, notifier, su)
	if err != nil {
		t.Fatalf("failed to create test RelayServer: %v", err)
	}
	return s
}

func newTestClient(t *testing.T, s *RelayServer, userId string) *Client {
	t.Helper()
	return NewClient(types.User{Id: userId, Username: userId}, nil, s, testutil.TestLogger(t))
}

func recvMessage(t *testing.T, c *Client) *ServerMessage {
	t.Helper()
	select {
	case msg := <-c.send:
		return msg
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func drainMessages(c *Client) {
	for {
		select {
		case <-c.send:
		default:
			return
		}
	}
}

func TestNewRelayServer(t *testing.T) {
	db := &database.MockRepository{}
	defer db.AssertExpectations(t)

	su := &stats.MockStatsUpdater{}
	defer su.AssertExpectations(t)
	su.On("RegisterMetric", mock.Anything).Times(5)

	logger := testutil.TestLogger(t)
	s, err := NewRelayServer(logger, db, &push.MockNotifier{}, su)
	assert.NoError(t, err, "expected no error creating RelayServer")
	assert.NotNil(t, s, "expected RelayServer to be non-nil")
	assert.Equal(t, logger, s.log, "expected logger to be set")
	assert.Equal(t, db, s.db, "expected database repository to be set")
	assert.NotNil(t, s.registry, "expected registry to be initialized")
	assert.NotNil(t, s.calls, "expected call table to be initialized")
	assert.Equal(t, defaultRingTimeout, s.ringTimeout, "expected default ring timeout")
	assert.NotNil(t, s.newCallId, "expected call id generator to be set")
}

func TestAnnounce(t *testing.T) {
	t.Run("sends snapshot and broadcasts reachable", func(t *testing.T) {
		su := &stats.MockStatsUpdater{}
		su.On("Incr", stats.ActiveConnections).Twice()
		defer su.AssertExpectations(t)

		s := newTestRelayServer(t, &database.MockRepository{}, &push.MockNotifier{}, su)

		alice := newTestClient(t, s, "alice")
		s.Announce(alice)

		msg := recvMessage(t, alice)
		assert.NotNil(t, msg.Notification, "expected a notification")
		assert.NotNil(t, msg.Notification.Snapshot, "expected a snapshot")
		assert.Equal(t, []PresenceEntry{{UserId: "alice", Activity: idleActivity}}, msg.Notification.Snapshot.Users)

		bob := newTestClient(t, s, "bob")
		s.Announce(bob)

		msg = recvMessage(t, bob)
		assert.NotNil(t, msg.Notification.Snapshot, "expected a snapshot for bob")
		assert.Len(t, msg.Notification.Snapshot.Users, 2, "expected both users in bob's snapshot")

		msg = recvMessage(t, alice)
		assert.NotNil(t, msg.Notification.Presence, "expected a presence delta")
		assert.Equal(t, &Presence{UserId: "bob", Reachable: true}, msg.Notification.Presence)
	})

	t.Run("reconnect does not double count connections", func(t *testing.T) {
		su := &stats.MockStatsUpdater{}
		su.On("Incr", stats.ActiveConnections).Once()
		defer su.AssertExpectations(t)

		s := newTestRelayServer(t, &database.MockRepository{}, &push.MockNotifier{}, su)

		c1 := newTestClient(t, s, "alice")
		s.Announce(c1)

		c2 := newTestClient(t, s, "alice")
		s.Announce(c2)

		su.AssertNumberOfCalls(t, "Incr", 1)

		got, ok := s.registry.Lookup("alice")
		assert.True(t, ok, "expected alice to be registered")
		assert.Same(t, c2, got, "expected the newer connection to win")
	})
}

func TestSetActivity(t *testing.T) {
	su := &stats.MockStatsUpdater{}
	su.On("Incr", stats.ActiveConnections).Twice()
	defer su.AssertExpectations(t)

	s := newTestRelayServer(t, &database.MockRepository{}, &push.MockNotifier{}, su)

	alice := newTestClient(t, s, "alice")
	bob := newTestClient(t, s, "bob")
	s.Announce(alice)
	s.Announce(bob)
	drainMessages(alice)
	drainMessages(bob)

	s.SetActivity("alice", "recording")

	for _, c := range []*Client{alice, bob} {
		msg := recvMessage(t, c)
		assert.NotNil(t, msg.Notification, "expected a notification")
		assert.Equal(t, &Activity{UserId: "alice", Activity: "recording"}, msg.Notification.Activity)
	}
}

func TestHandleDisconnect(t *testing.T) {
	t.Run("broadcasts unreachable and decrements", func(t *testing.T) {
		su := &stats.MockStatsUpdater{}
		su.On("Incr", stats.ActiveConnections).Twice()
		su.On("Decr", stats.ActiveConnections).Once()
		defer su.AssertExpectations(t)

		s := newTestRelayServer(t, &database.MockRepository{}, &push.MockNotifier{}, su)

		alice := newTestClient(t, s, "alice")
		bob := newTestClient(t, s, "bob")
		s.Announce(alice)
		s.Announce(bob)
		drainMessages(alice)
		drainMessages(bob)

		s.HandleDisconnect(alice)

		msg := recvMessage(t, bob)
		assert.NotNil(t, msg.Notification, "expected a notification")
		assert.Equal(t, &Presence{UserId: "alice", Reachable: false}, msg.Notification.Presence)

		_, ok := s.registry.Lookup("alice")
		assert.False(t, ok, "expected alice to be unregistered")
	})

	t.Run("stale connection triggers no cleanup", func(t *testing.T) {
		su := &stats.MockStatsUpdater{}
		su.On("Incr", stats.ActiveConnections).Once()
		defer su.AssertExpectations(t)

		s := newTestRelayServer(t, &database.MockRepository{}, &push.MockNotifier{}, su)

		c1 := newTestClient(t, s, "alice")
		s.Announce(c1)

		c2 := newTestClient(t, s, "alice")
		s.Announce(c2)

		// c1 was replaced by c2, its disconnect must not unregister alice
		s.HandleDisconnect(c1)

		su.AssertNotCalled(t, "Decr", stats.ActiveConnections)

		got, ok := s.registry.Lookup("alice")
		assert.True(t, ok, "expected alice to remain registered")
		assert.Same(t, c2, got, "expected the fresh connection to survive")
	})
}

func TestRelayServerShutdown(t *testing.T) {
	su := &stats.MockStatsUpdater{}
	su.On("Incr", stats.ActiveConnections).Twice()
	defer su.AssertExpectations(t)

	s := newTestRelayServer(t, &database.MockRepository{}, &push.MockNotifier{}, su)

	alice := newTestClient(t, s, "alice")
	bob := newTestClient(t, s, "bob")
	s.Announce(alice)
	s.Announce(bob)

	s.Shutdown()

	for _, c := range []*Client{alice, bob} {
		select {
		case <-c.stop:
		default:
			t.Error("expected client stop channel to be closed")
		}
	}
}
