package services

import (
	"github.com/stretchr/testify/mock"
)

// MockBroadcaster records the events a service announces.
type MockBroadcaster struct {
	mock.Mock
}

func (m *MockBroadcaster) Broadcast(messageType string, data interface{}) {
	m.Called(messageType, data)
}

func (m *MockBroadcaster) ClientCount() int {
	args := m.Called()
	return args.Int(0)
}
