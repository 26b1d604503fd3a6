package database

import (
	"github.com/duetapp/duet-server/internal/types"
	"github.com/stretchr/testify/mock"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockRepository) CreateAccount(params CreateAccountParams) (Account, error) {
	args := m.Called(params)
	return args.Get(0).(Account), args.Error(1)
}
func (m *MockRepository) GetAccountByEmail(email string) (Account, error) {
	args := m.Called(email)
	return args.Get(0).(Account), args.Error(1)
}
func (m *MockRepository) GetAccountByExternalId(externalId string) (Account, error) {
	args := m.Called(externalId)
	return args.Get(0).(Account), args.Error(1)
}
func (m *MockRepository) CreateMessage(params CreateMessageParams) (types.Message, error) {
	args := m.Called(params)
	return args.Get(0).(types.Message), args.Error(1)
}
func (m *MockRepository) GetMessage(id int64) (types.Message, error) {
	args := m.Called(id)
	return args.Get(0).(types.Message), args.Error(1)
}
func (m *MockRepository) GetMessages(userId, peerId string, before int64, limit int) ([]types.Message, error) {
	args := m.Called(userId, peerId, before, limit)
	return args.Get(0).([]types.Message), args.Error(1)
}
func (m *MockRepository) MarkMessageRead(id int64, read bool) error {
	args := m.Called(id, read)
	return args.Error(0)
}
func (m *MockRepository) DeleteMessage(id int64) error {
	args := m.Called(id)
	return args.Error(0)
}
func (m *MockRepository) UpsertSubscription(params UpsertSubscriptionParams) (types.PushSubscription, error) {
	args := m.Called(params)
	return args.Get(0).(types.PushSubscription), args.Error(1)
}
func (m *MockRepository) ListSubscriptions(userId string) ([]types.PushSubscription, error) {
	args := m.Called(userId)
	return args.Get(0).([]types.PushSubscription), args.Error(1)
}
func (m *MockRepository) DeleteSubscription(userId, origin string) error {
	args := m.Called(userId, origin)
	return args.Error(0)
}
func (m *MockRepository) DeleteSubscriptionByEndpoint(endpoint string) error {
	args := m.Called(endpoint)
	return args.Error(0)
}
