package server

import "sync"

const idleActivity = "idle"

// Registry is the single source of truth for which users are reachable right
// now and on which connection. The reverse index is maintained atomically
// with the forward map so that a stale disconnect for an old connection can
// never remove a user who has since reconnected on a new one.
type Registry struct {
	mu       sync.Mutex
	byUser   map[string]*Client
	byClient map[*Client]string
	activity map[string]string
}

func NewRegistry() *Registry {
	return &Registry{
		byUser:   make(map[string]*Client),
		byClient: make(map[*Client]string),
		activity: make(map[string]string),
	}
}

// Register binds userId to c, overwriting any previous connection for the
// same user. It returns the current presence set for initial sync to the
// registering client, and whether an existing connection was replaced.
func (r *Registry) Register(userId string, c *Client) ([]PresenceEntry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	old, replaced := r.byUser[userId]
	if replaced && old != c {
		delete(r.byClient, old)
	}

	r.byUser[userId] = c
	r.byClient[c] = userId
	if _, ok := r.activity[userId]; !ok {
		r.activity[userId] = idleActivity
	}

	snapshot := make([]PresenceEntry, 0, len(r.byUser))
	for id := range r.byUser {
		snapshot = append(snapshot, PresenceEntry{UserId: id, Activity: r.activity[id]})
	}

	return snapshot, replaced
}

func (r *Registry) Lookup(userId string) (*Client, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.byUser[userId]
	return c, ok
}

// SetActivity updates the advisory activity string. Updates for users who are
// not currently registered are dropped here so no state is orphaned, but the
// caller still broadcasts them to tolerate announce/activity reordering.
func (r *Registry) SetActivity(userId, activity string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byUser[userId]; ok {
		r.activity[userId] = activity
	}
}

// Unregister removes the user currently bound to this exact connection. It
// reports false when c is not the user's current connection, which happens
// when the user already reconnected on a different one.
func (r *Registry) Unregister(c *Client) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	userId, ok := r.byClient[c]
	if !ok {
		return "", false
	}

	delete(r.byClient, c)
	delete(r.byUser, userId)
	delete(r.activity, userId)

	return userId, true
}

// Clients returns a copy of all registered connections for broadcasting
// outside the lock.
func (r *Registry) Clients() []*Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	clients := make([]*Client, 0, len(r.byClient))
	for c := range r.byClient {
		clients = append(clients, c)
	}
	return clients
}
