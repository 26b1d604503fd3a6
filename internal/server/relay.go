package server

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/duetapp/duet-server/internal/database"
	"github.com/duetapp/duet-server/internal/push"
	"github.com/duetapp/duet-server/internal/stats"
	"github.com/duetapp/duet-server/internal/types"
)

// Relay turns one sender-originated event into at most one persisted record
// and at most one delivery attempt per channel. Live delivery is tried first
// and the sender's own connection receives an echo so its UI reflects the
// sent state; push is only attempted when the receiver has no live
// connection. A persistence failure aborts the relay: no delivery is made for
// an unpersisted message. Relay is callable from both the websocket path and
// REST handlers.
func (s *RelayServer) Relay(senderId, receiverId string, kind types.MessageKind, payload json.RawMessage) (types.Message, error) {
	msg, err := s.db.CreateMessage(database.CreateMessageParams{
		SenderId:   senderId,
		ReceiverId: receiverId,
		Kind:       kind,
		Payload:    payload,
	})
	if err != nil {
		return types.Message{}, fmt.Errorf("create message: %w", err)
	}

	if receiver, ok := s.registry.Lookup(receiverId); ok {
		if !receiver.queueMessage(newMessageEvent(msg)) {
			s.log.Printf("dropping delivery to %q: send queue full", receiverId)
		}
		if sender, ok := s.registry.Lookup(senderId); ok {
			sender.queueMessage(newMessageEvent(msg))
		}
	} else {
		s.notifier.Notify(context.Background(), receiverId, s.messagePayload(msg))
		s.stats.Incr(stats.PushNotifications)
	}

	s.stats.Incr(stats.MessagesRelayed)
	return msg, nil
}

func (s *RelayServer) messagePayload(msg types.Message) push.Payload {
	title := "New message"
	if sender, err := s.db.GetAccountByExternalId(msg.SenderId); err == nil {
		title = sender.Username
	}

	return push.Payload{
		Title: title,
		Body:  pushSummary(msg.Kind, msg.Payload),
		Icon:  "/icons/message.png",
		Tag:   "message-" + msg.SenderId,
		Data: map[string]any{
			"url":       "/chat/" + msg.SenderId,
			"type":      string(msg.Kind),
			"sender_id": msg.SenderId,
		},
	}
}

// pushSummary renders the human-readable notification body for a message.
func pushSummary(kind types.MessageKind, payload json.RawMessage) string {
	switch kind {
	case types.KindText:
		var p types.TextPayload
		if err := json.Unmarshal(payload, &p); err == nil && p.Content != "" {
			return p.Content
		}
		return "New message"
	case types.KindVoice:
		return "Voice message"
	case types.KindFile:
		var p types.FilePayload
		if err := json.Unmarshal(payload, &p); err != nil || len(p.Files) == 0 {
			return "📎 Sent a file"
		}
		if len(p.Files) > 1 {
			return fmt.Sprintf("📎 Sent %d files", len(p.Files))
		}
		switch p.Files[0].Type {
		case types.FileTypeImage:
			return "📷 Sent a photo"
		case types.FileTypeVideo:
			return "🎥 Sent a video"
		default:
			return "📄 Sent a document"
		}
	case types.KindReaction:
		var p types.ReactionPayload
		if err := json.Unmarshal(payload, &p); err == nil && p.Emoji != "" {
			return "Reacted " + p.Emoji
		}
		return "Reacted to your message"
	case types.KindCallMissed:
		return "Missed call"
	case types.KindCallDeclined:
		return "Call declined"
	case types.KindCallStarted:
		return "Call started"
	}

	return "New message"
}
