package domain

import (
	"context"
	"time"
)

// ChatSession is the persisted record of one browser-local conversation
type ChatSession struct {
	ConversationID string    `json:"conversationId"`
	Messages       []Message `json:"messages"`
	IsEscalated    bool      `json:"isEscalated"`
	CreatedAt      time.Time `json:"createdAt"`
	UpdatedAt      time.Time `json:"updatedAt"`
}

// NewChatSession fabricates an empty session with a fresh id
func NewChatSession(now time.Time) *ChatSession {
	return &ChatSession{
		ConversationID: NewID(),
		Messages:       []Message{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Clone returns a deep copy of the session
func (s *ChatSession) Clone() *ChatSession {
	if s == nil {
		return nil
	}
	out := *s
	out.Messages = make([]Message, len(s.Messages))
	for i, m := range s.Messages {
		out.Messages[i] = m.Clone()
	}
	return &out
}

// ChatState holds the ephemeral UI flags of the widget. It is never persisted.
type ChatState struct {
	IsOpen       bool    `json:"isOpen"`
	IsTyping     bool    `json:"isTyping"`
	IsConnected  bool    `json:"isConnected"`
	IsRestoring  bool    `json:"isRestoring"`
	IsEscalating bool    `json:"isEscalating"`
	Error        *string `json:"error"`
}

// SessionStorage persists session snapshots and the pointer to the active conversation
type SessionStorage interface {
	// Save stores the snapshot and records its id as the current conversation
	Save(ctx context.Context, session *ChatSession) error

	// Load returns the stored snapshot, or nil when none exists
	Load(ctx context.Context, conversationID string) (*ChatSession, error)

	// CurrentConversationID returns the last saved id, or "" when none exists
	CurrentConversationID(ctx context.Context) (string, error)

	// Remove deletes the stored snapshot
	Remove(ctx context.Context, conversationID string) error
}
