package types

import (
	"encoding/json"
	"time"
)

// MessageKind classifies a relayed event. Call lifecycle kinds are persisted
// like any other message so they show up in conversation history.
type MessageKind string

const (
	KindText         MessageKind = "text"
	KindFile         MessageKind = "file"
	KindVoice        MessageKind = "voice"
	KindCallStarted  MessageKind = "call_started"
	KindCallMissed   MessageKind = "call_missed"
	KindCallDeclined MessageKind = "call_declined"
	KindReaction     MessageKind = "reaction"
)

func (k MessageKind) Valid() bool {
	switch k {
	case KindText, KindFile, KindVoice, KindCallStarted, KindCallMissed, KindCallDeclined, KindReaction:
		return true
	}
	return false
}

type User struct {
	Id           string    `json:"id"`
	Username     string    `json:"username"`
	EmailAddress string    `json:"email_address,omitempty"`
	Password     string    `json:"-"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
	UpdatedAt    time.Time `json:"updated_at,omitempty"`
}

type Message struct {
	Id         int64           `json:"id"`
	SenderId   string          `json:"sender_id"`
	ReceiverId string          `json:"receiver_id"`
	Kind       MessageKind     `json:"kind"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Read       bool            `json:"read"`
	CreatedAt  time.Time       `json:"created_at"`
}

// PushSubscription is a push endpoint registration owned by the subscription
// store. The realtime core only lists them and prunes dead ones.
type PushSubscription struct {
	Id        int64             `json:"id"`
	UserId    string            `json:"user_id"`
	Origin    string            `json:"origin"`
	Endpoint  string            `json:"endpoint"`
	Keys      map[string]string `json:"keys,omitempty"`
	CreatedAt time.Time         `json:"created_at,omitempty"`
}

type TextPayload struct {
	Content string `json:"content"`
}

type FilePayload struct {
	Files []FileAttachment `json:"files"`
}

type FileAttachment struct {
	Url  string `json:"url"`
	Type string `json:"type"`
	Name string `json:"name,omitempty"`
}

const (
	FileTypeImage    = "image"
	FileTypeVideo    = "video"
	FileTypeDocument = "document"
)

type VoicePayload struct {
	Url      string `json:"url"`
	Duration int    `json:"duration,omitempty"`
}

type ReactionPayload struct {
	MessageId int64  `json:"message_id"`
	Emoji     string `json:"emoji"`
}

type CallPayload struct {
	CallId string `json:"call_id"`
}
