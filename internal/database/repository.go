package database

import "github.com/duetapp/duet-server/internal/types"

// Repository is the persistence boundary of the realtime core: the message
// store, the account store backing the identity layer, and the push
// subscription store.
type Repository interface {
	Ping() error

	CreateAccount(params CreateAccountParams) (Account, error)
	GetAccountByEmail(email string) (Account, error)
	GetAccountByExternalId(externalId string) (Account, error)

	CreateMessage(params CreateMessageParams) (types.Message, error)
	GetMessage(id int64) (types.Message, error)
	GetMessages(userId, peerId string, before int64, limit int) ([]types.Message, error)
	MarkMessageRead(id int64, read bool) error
	DeleteMessage(id int64) error

	UpsertSubscription(params UpsertSubscriptionParams) (types.PushSubscription, error)
	ListSubscriptions(userId string) ([]types.PushSubscription, error)
	DeleteSubscription(userId, origin string) error
	DeleteSubscriptionByEndpoint(endpoint string) error
}
