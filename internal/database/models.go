package database

import (
	"encoding/json"
	"time"

	"github.com/duetapp/duet-server/internal/types"
)

type Account struct {
	Id           int
	ExternalId   string
	Username     string
	EmailAddress string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type CreateAccountParams struct {
	ExternalId   string
	Username     string
	EmailAddress string
	PasswordHash string
}

type CreateMessageParams struct {
	SenderId   string
	ReceiverId string
	Kind       types.MessageKind
	Payload    json.RawMessage
}

type UpsertSubscriptionParams struct {
	UserId   string
	Origin   string
	Endpoint string
	Keys     map[string]string
}
