package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/duetapp/duet-server/internal/types"
)

type BaseMessage struct {
	Id        int       `json:"id,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// ClientMessage is the inbound event envelope. Exactly one of the pointer
// fields is set per event.
type ClientMessage struct {
	BaseMessage
	Announce *Announce `json:"announce,omitempty"`
	Activity *Activity `json:"activity,omitempty"`
	Send     *Send     `json:"send,omitempty"`
	Call     *Call     `json:"call,omitempty"`
	Resolve  *Resolve  `json:"resolve,omitempty"`
	Signal   *Signal   `json:"signal,omitempty"`
	End      *End      `json:"end,omitempty"`
}

type Announce struct {
	UserId string `json:"user_id"`
}

type Activity struct {
	UserId   string `json:"user_id"`
	Activity string `json:"activity"`
}

type Send struct {
	ReceiverId string            `json:"receiver_id"`
	Kind       types.MessageKind `json:"kind"`
	Payload    json.RawMessage   `json:"payload,omitempty"`
}

type Call struct {
	CalleeId string `json:"callee_id"`
}

type CallOutcome string

const (
	OutcomeAccepted  CallOutcome = "accepted"
	OutcomeDeclined  CallOutcome = "declined"
	OutcomeCancelled CallOutcome = "cancelled"
)

func (o CallOutcome) Valid() bool {
	switch o {
	case OutcomeAccepted, OutcomeDeclined, OutcomeCancelled:
		return true
	}
	return false
}

type Resolve struct {
	CallId  string      `json:"call_id"`
	Outcome CallOutcome `json:"outcome"`
}

// Signal carries an SDP offer, SDP answer or ICE candidate between call
// peers. The payload is relayed opaquely; the server never parses it.
type Signal struct {
	CallId  string          `json:"call_id"`
	ToId    string          `json:"to_id"`
	FromId  string          `json:"from_id,omitempty"`
	Kind    string          `json:"kind"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type End struct {
	CallId string `json:"call_id"`
	ToId   string `json:"to_id"`
}

type ServerMessage struct {
	BaseMessage
	Response     *Response      `json:"response,omitempty"`
	Message      *types.Message `json:"message,omitempty"`
	Notification *Notification  `json:"notification,omitempty"`
}

type Response struct {
	ResponseCode int            `json:"response_code"`
	Error        string         `json:"error,omitempty"`
	Data         map[string]any `json:"data,omitempty"`
}

type Notification struct {
	Snapshot *Snapshot         `json:"snapshot,omitempty"`
	Presence *Presence         `json:"presence,omitempty"`
	Activity *Activity         `json:"activity,omitempty"`
	Call     *CallNotification `json:"call,omitempty"`
	Signal   *Signal           `json:"signal,omitempty"`
}

type Snapshot struct {
	Users []PresenceEntry `json:"users"`
}

type PresenceEntry struct {
	UserId   string `json:"user_id"`
	Activity string `json:"activity"`
}

type Presence struct {
	UserId    string `json:"user_id"`
	Reachable bool   `json:"reachable"`
}

type CallEvent string

const (
	CallOutgoing  CallEvent = "outgoing"
	CallIncoming  CallEvent = "incoming"
	CallAccepted  CallEvent = "accepted"
	CallDeclined  CallEvent = "declined"
	CallCancelled CallEvent = "cancelled"
	CallMissed    CallEvent = "missed"
	CallEnded     CallEvent = "ended"
)

type CallNotification struct {
	CallId string      `json:"call_id"`
	Event  CallEvent   `json:"event"`
	Peer   *types.User `json:"peer,omitempty"`
}

func NoErrOK(id int, data map[string]any) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{
			Id:        id,
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusOK,
			Data:         data,
		},
	}
}

func ErrInvalidMessage(id int) *ServerMessage {
	msg := &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusBadRequest,
			Error:        "invalid message format",
		},
	}

	if id > 0 {
		msg.Id = id
	}
	return msg
}

func ErrInternalError(id int) *ServerMessage {
	msg := &ServerMessage{
		BaseMessage: BaseMessage{
			Timestamp: Now(),
		},
		Response: &Response{
			ResponseCode: http.StatusInternalServerError,
			Error:        "internal server error",
		},
	}

	if id > 0 {
		msg.Id = id
	}
	return msg
}

func newNotification(n *Notification) *ServerMessage {
	return &ServerMessage{
		BaseMessage:  BaseMessage{Timestamp: Now()},
		Notification: n,
	}
}

func newMessageEvent(msg types.Message) *ServerMessage {
	return &ServerMessage{
		BaseMessage: BaseMessage{Timestamp: Now()},
		Message:     &msg,
	}
}

func newCallNotification(callId string, event CallEvent, peer *types.User) *ServerMessage {
	return newNotification(&Notification{
		Call: &CallNotification{
			CallId: callId,
			Event:  event,
			Peer:   peer,
		},
	})
}

func Now() time.Time {
	return time.Now().UTC().Round(time.Millisecond)
}
