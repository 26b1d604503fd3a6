package server

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/duetapp/duet-server/internal/push"
	"github.com/duetapp/duet-server/internal/stats"
	"github.com/duetapp/duet-server/internal/types"
)

const defaultRingTimeout = 30 * time.Second

type callSession struct {
	id       string
	callerId string
	calleeId string
	timer    *time.Timer
}

// callTable tracks ringing calls. Removal is a single compare-and-remove
// claim: whichever of explicit resolution, ring timeout or disconnect cleanup
// claims a session first performs the resolution side effects; the others
// observe the session as gone and become no-ops.
type callTable struct {
	mu       sync.Mutex
	sessions map[string]*callSession
}

func newCallTable() *callTable {
	return &callTable{sessions: make(map[string]*callSession)}
}

// create inserts a new session and starts its ring timer under the table
// lock, so the timer callback cannot observe a half-inserted session.
func (t *callTable) create(id, callerId, calleeId string, d time.Duration, onTimeout func()) *callSession {
	t.mu.Lock()
	defer t.mu.Unlock()

	sess := &callSession{id: id, callerId: callerId, calleeId: calleeId}
	sess.timer = time.AfterFunc(d, onTimeout)
	t.sessions[id] = sess

	return sess
}

func (t *callTable) claim(id string) (*callSession, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	sess, ok := t.sessions[id]
	if ok {
		delete(t.sessions, id)
	}
	return sess, ok
}

// claimByUser removes and returns every session the user participates in,
// as caller or callee.
func (t *callTable) claimByUser(userId string) []*callSession {
	t.mu.Lock()
	defer t.mu.Unlock()

	var claimed []*callSession
	for id, sess := range t.sessions {
		if sess.callerId == userId || sess.calleeId == userId {
			delete(t.sessions, id)
			claimed = append(claimed, sess)
		}
	}
	return claimed
}

// InitiateCall starts ringing calleeId on behalf of callerId and returns the
// new call id. The ring timer resolves the call as missed unless something
// claims the session first.
func (s *RelayServer) InitiateCall(callerId, calleeId string) (string, error) {
	callId, err := s.newCallId()
	if err != nil {
		return "", fmt.Errorf("generate call id: %w", err)
	}

	s.calls.create(callId, callerId, calleeId, s.ringTimeout, func() {
		s.handleRingTimeout(callId)
	})
	s.stats.Incr(stats.ActiveCalls)

	if caller, ok := s.registry.Lookup(callerId); ok {
		caller.queueMessage(newCallNotification(callId, CallOutgoing, s.profile(calleeId)))
	}

	if callee, ok := s.registry.Lookup(calleeId); ok {
		callee.queueMessage(newCallNotification(callId, CallIncoming, s.profile(callerId)))
	} else {
		s.notifier.Notify(context.Background(), calleeId, s.incomingCallPayload(callId, callerId))
		s.stats.Incr(stats.PushNotifications)
	}

	return callId, nil
}

// ResolveCall applies a user action to a ringing call. A call id that is no
// longer in the table was already resolved by another path; that is a defined
// no-op, not an error.
func (s *RelayServer) ResolveCall(callId string, outcome CallOutcome) {
	sess, ok := s.calls.claim(callId)
	if !ok {
		return
	}
	sess.timer.Stop()
	s.stats.Decr(stats.ActiveCalls)

	switch outcome {
	case OutcomeAccepted:
		if _, err := s.Relay(sess.callerId, sess.calleeId, types.KindCallStarted, callPayload(callId)); err != nil {
			s.log.Printf("relay call_started for %q: %v", callId, err)
		}
		s.notifyParty(sess.callerId, callId, CallAccepted)
		s.notifyParty(sess.calleeId, callId, CallAccepted)
	case OutcomeDeclined:
		if _, err := s.Relay(sess.callerId, sess.calleeId, types.KindCallDeclined, callPayload(callId)); err != nil {
			s.log.Printf("relay call_declined for %q: %v", callId, err)
		}
		s.notifyParty(sess.callerId, callId, CallDeclined)
	case OutcomeCancelled:
		// nothing is persisted for a caller-side cancel before pickup
		s.notifyParty(sess.calleeId, callId, CallCancelled)
	}
}

func (s *RelayServer) handleRingTimeout(callId string) {
	sess, ok := s.calls.claim(callId)
	if !ok {
		return
	}
	s.stats.Decr(stats.ActiveCalls)
	s.resolveMissed(sess)
}

// cleanupCalls resolves every pending call of a disconnecting user as missed,
// regardless of which side the user was on.
func (s *RelayServer) cleanupCalls(userId string) {
	for _, sess := range s.calls.claimByUser(userId) {
		sess.timer.Stop()
		s.stats.Decr(stats.ActiveCalls)
		s.resolveMissed(sess)
	}
}

func (s *RelayServer) resolveMissed(sess *callSession) {
	s.stats.Incr(stats.MissedCalls)
	if _, err := s.Relay(sess.callerId, sess.calleeId, types.KindCallMissed, callPayload(sess.id)); err != nil {
		s.log.Printf("relay call_missed for %q: %v", sess.id, err)
	}
	s.notifyParty(sess.callerId, sess.id, CallMissed)
	s.notifyParty(sess.calleeId, sess.id, CallMissed)
}

// RelaySignal passes an SDP or ICE payload through to the peer's live
// connection. Signals to unreachable peers are dropped: they are never queued
// or pushed, and a failed setup surfaces as a call-setup timeout client-side.
func (s *RelayServer) RelaySignal(fromId string, sig *Signal) {
	peer, ok := s.registry.Lookup(sig.ToId)
	if !ok {
		return
	}

	out := *sig
	out.FromId = fromId
	peer.queueMessage(newNotification(&Notification{Signal: &out}))
}

// EndCall tears down a ringing or in-progress call. A missing session still
// notifies the other party, so duplicate end events are harmless.
func (s *RelayServer) EndCall(callId, toId string) {
	if sess, ok := s.calls.claim(callId); ok {
		sess.timer.Stop()
		s.stats.Decr(stats.ActiveCalls)
	}
	s.notifyParty(toId, callId, CallEnded)
}

func (s *RelayServer) notifyParty(userId, callId string, event CallEvent) {
	if c, ok := s.registry.Lookup(userId); ok {
		c.queueMessage(newCallNotification(callId, event, nil))
	}
}

// profile resolves display info for call notifications, falling back to a
// bare id when the lookup fails.
func (s *RelayServer) profile(userId string) *types.User {
	acct, err := s.db.GetAccountByExternalId(userId)
	if err != nil {
		s.log.Printf("profile lookup for %q: %v", userId, err)
		return &types.User{Id: userId}
	}

	return &types.User{Id: acct.ExternalId, Username: acct.Username}
}

func (s *RelayServer) incomingCallPayload(callId, callerId string) push.Payload {
	caller := s.profile(callerId)
	title := "Incoming call"
	if caller.Username != "" {
		title = caller.Username
	}

	return push.Payload{
		Title:              title,
		Body:               "Incoming call",
		Icon:               "/icons/call.png",
		Tag:                "call-" + callId,
		RequireInteraction: true,
		Data: map[string]any{
			"type":      "incoming_call",
			"call_id":   callId,
			"caller_id": callerId,
			"url":       "/call/" + callId,
		},
		Actions: []push.Action{
			{Action: "accept", Title: "Accept"},
			{Action: "decline", Title: "Decline"},
		},
	}
}

func callPayload(callId string) json.RawMessage {
	payload, _ := json.Marshal(types.CallPayload{CallId: callId})
	return payload
}
