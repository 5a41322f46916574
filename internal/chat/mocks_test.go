package chat

import (
	"context"

	"github.com/Rrens/support-chat/internal/domain"
	"github.com/stretchr/testify/mock"
)

// MockBackend mocks domain.Backend
type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) SendMessage(ctx context.Context, content string, attachments []domain.FileAttachment) (*domain.Message, error) {
	args := m.Called(ctx, content, attachments)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Message), args.Error(1)
}

func (m *MockBackend) UploadFile(ctx context.Context, file domain.FileUpload, onProgress domain.ProgressFunc) (*domain.FileAttachment, error) {
	args := m.Called(ctx, file, onProgress)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.FileAttachment), args.Error(1)
}

func (m *MockBackend) RestoreSession(ctx context.Context, conversationID string) (*domain.ChatSession, error) {
	args := m.Called(ctx, conversationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ChatSession), args.Error(1)
}

func (m *MockBackend) RequestHumanAgent(ctx context.Context) (*domain.Message, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Message), args.Error(1)
}

// MockSessionStorage mocks domain.SessionStorage
type MockSessionStorage struct {
	mock.Mock
}

func (m *MockSessionStorage) Save(ctx context.Context, session *domain.ChatSession) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *MockSessionStorage) Load(ctx context.Context, conversationID string) (*domain.ChatSession, error) {
	args := m.Called(ctx, conversationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ChatSession), args.Error(1)
}

func (m *MockSessionStorage) CurrentConversationID(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockSessionStorage) Remove(ctx context.Context, conversationID string) error {
	args := m.Called(ctx, conversationID)
	return args.Error(0)
}
