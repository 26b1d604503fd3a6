package push

import (
	"context"

	"github.com/duetapp/duet-server/internal/types"
	"github.com/stretchr/testify/mock"
)

type MockSender struct {
	mock.Mock
}

func (m *MockSender) Send(ctx context.Context, sub types.PushSubscription, payload Payload) error {
	args := m.Called(ctx, sub, payload)
	return args.Error(0)
}

// MockNotifier stands in for the Dispatcher in realtime-core tests.
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, userId string, payload Payload) {
	m.Called(ctx, userId, payload)
}
