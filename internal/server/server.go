package server

import (
	"context"
	"log"
	"time"

	"github.com/duetapp/duet-server/internal/database"
	"github.com/duetapp/duet-server/internal/push"
	"github.com/duetapp/duet-server/internal/stats"
	"github.com/teris-io/shortid"
)

// Notifier is the push-dispatch dependency of the relay. Implementations must
// absorb delivery failures; Notify never reports an error to the caller.
type Notifier interface {
	Notify(ctx context.Context, userId string, payload push.Payload)
}

// RelayServer is the realtime core: it owns the connection registry and the
// active-call table and implements message relay and call signaling on top of
// them. All exported operations are safe for concurrent use; no I/O happens
// while either internal lock is held.
type RelayServer struct {
	log      *log.Logger
	db       database.Repository
	notifier Notifier
	stats    stats.StatsProvider

	registry *Registry
	calls    *callTable

	ringTimeout time.Duration
	newCallId   func() (string, error)
}

func NewRelayServer(logger *log.Logger, db database.Repository, notifier Notifier, su stats.StatsProvider) (*RelayServer, error) {
	s := &RelayServer{
		log:         logger,
		db:          db,
		notifier:    notifier,
		stats:       su,
		registry:    NewRegistry(),
		calls:       newCallTable(),
		ringTimeout: defaultRingTimeout,
		newCallId:   shortid.Generate,
	}

	s.stats.RegisterMetric(stats.ActiveConnections)
	s.stats.RegisterMetric(stats.MessagesRelayed)
	s.stats.RegisterMetric(stats.PushNotifications)
	s.stats.RegisterMetric(stats.ActiveCalls)
	s.stats.RegisterMetric(stats.MissedCalls)

	return s, nil
}

// Announce registers c's user as reachable, sends the presence snapshot to
// the announcing client and broadcasts a reachable delta to everyone else.
func (s *RelayServer) Announce(c *Client) {
	snapshot, replaced := s.registry.Register(c.user.Id, c)
	if !replaced {
		s.stats.Incr(stats.ActiveConnections)
	}

	c.queueMessage(newNotification(&Notification{Snapshot: &Snapshot{Users: snapshot}}))
	s.broadcast(newNotification(&Notification{
		Presence: &Presence{UserId: c.user.Id, Reachable: true},
	}), c)
}

// SetActivity broadcasts an activity delta to all connected users. The
// broadcast happens even when the user is not registered.
func (s *RelayServer) SetActivity(userId, activity string) {
	s.registry.SetActivity(userId, activity)
	s.broadcast(newNotification(&Notification{
		Activity: &Activity{UserId: userId, Activity: activity},
	}), nil)
}

// HandleDisconnect runs the connection-close cleanup: presence first, then
// pending calls, so call cleanup observes the user as already unreachable. A
// connection the user has already replaced triggers no cleanup at all.
func (s *RelayServer) HandleDisconnect(c *Client) {
	userId, ok := s.registry.Unregister(c)
	if !ok {
		return
	}
	s.stats.Decr(stats.ActiveConnections)

	s.broadcast(newNotification(&Notification{
		Presence: &Presence{UserId: userId, Reachable: false},
	}), c)

	s.cleanupCalls(userId)
}

func (s *RelayServer) broadcast(msg *ServerMessage, skip *Client) {
	for _, c := range s.registry.Clients() {
		if c == skip {
			continue
		}
		if !c.queueMessage(msg) {
			s.log.Printf("dropping broadcast to %q: send queue full", c.user.Id)
		}
	}
}

func (s *RelayServer) Shutdown() {
	s.log.Println("shutting down relay server")
	for _, c := range s.registry.Clients() {
		c.stopClient()
	}
}
