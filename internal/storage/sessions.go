package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/Rrens/support-chat/internal/domain"
)

const (
	sessionKeyPrefix      = "chat_session_"
	currentConversationID = "chat_conversation_id"
)

// Sessions implements domain.SessionStorage on top of a key-value store
type Sessions struct {
	kv domain.KeyValueStore
}

// NewSessions creates session storage backed by kv
func NewSessions(kv domain.KeyValueStore) *Sessions {
	return &Sessions{kv: kv}
}

// SessionKey returns the key a conversation snapshot is stored under
func SessionKey(conversationID string) string {
	return sessionKeyPrefix + conversationID
}

// Save writes the snapshot first and the current-conversation pointer
// second. The two writes are not atomic.
func (s *Sessions) Save(ctx context.Context, session *domain.ChatSession) error {
	if session == nil {
		return errors.New("nil session")
	}

	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}

	if err := s.kv.Set(ctx, SessionKey(session.ConversationID), data); err != nil {
		return fmt.Errorf("failed to store session: %w", err)
	}
	if err := s.kv.Set(ctx, currentConversationID, []byte(session.ConversationID)); err != nil {
		return fmt.Errorf("failed to store conversation id: %w", err)
	}
	return nil
}

// Load returns the stored snapshot, or nil when there is none
func (s *Sessions) Load(ctx context.Context, conversationID string) (*domain.ChatSession, error) {
	data, err := s.kv.Get(ctx, SessionKey(conversationID))
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	var session domain.ChatSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	if session.Messages == nil {
		session.Messages = []domain.Message{}
	}
	return &session, nil
}

// CurrentConversationID returns the last saved conversation id, or ""
func (s *Sessions) CurrentConversationID(ctx context.Context) (string, error) {
	data, err := s.kv.Get(ctx, currentConversationID)
	if errors.Is(err, domain.ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read conversation id: %w", err)
	}
	return string(data), nil
}

// Remove deletes a snapshot and clears the pointer if it referenced it
func (s *Sessions) Remove(ctx context.Context, conversationID string) error {
	if err := s.kv.Remove(ctx, SessionKey(conversationID)); err != nil {
		return fmt.Errorf("failed to remove session: %w", err)
	}

	current, err := s.CurrentConversationID(ctx)
	if err != nil {
		return err
	}
	if current == conversationID {
		if err := s.kv.Remove(ctx, currentConversationID); err != nil {
			return fmt.Errorf("failed to clear conversation id: %w", err)
		}
	}
	return nil
}
