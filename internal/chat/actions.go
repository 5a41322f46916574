package chat

import (
	"time"

	"github.com/Rrens/support-chat/internal/domain"
)

// Snapshot is an immutable view of the widget: the thread, the UI flags
// and the active session.
type Snapshot struct {
	Messages []domain.Message    `json:"messages"`
	State    domain.ChatState    `json:"state"`
	Session  *domain.ChatSession `json:"session"`
}

func (s Snapshot) clone() Snapshot {
	out := Snapshot{
		Messages: make([]domain.Message, len(s.Messages)),
		State:    s.State,
		Session:  s.Session.Clone(),
	}
	for i, m := range s.Messages {
		out.Messages[i] = m.Clone()
	}
	if s.State.Error != nil {
		e := *s.State.Error
		out.State.Error = &e
	}
	return out
}

// action is the closed set of transitions the store understands
type action interface {
	isAction()
}

type (
	toggleChat    struct{}
	setTyping     struct{ value bool }
	setConnected  struct{ value bool }
	setRestoring  struct{ value bool }
	setEscalating struct{ value bool }
	setError      struct{ message *string }
	addMessage    struct{ message domain.Message }
	updateMessage struct {
		id     string
		status domain.MessageStatus
	}
	setSession struct {
		session *domain.ChatSession
		fresh   bool
	}
	setEscalated struct{}
)

func (toggleChat) isAction()    {}
func (setTyping) isAction()     {}
func (setConnected) isAction()  {}
func (setRestoring) isAction()  {}
func (setEscalating) isAction() {}
func (setError) isAction()      {}
func (addMessage) isAction()    {}
func (updateMessage) isAction() {}
func (setSession) isAction()    {}
func (setEscalated) isAction()  {}

// reduce returns the next state and whether the session must be persisted.
// It never mutates s: message slices and the session are copied on write.
func reduce(s Snapshot, a action, now time.Time) (Snapshot, bool) {
	switch a := a.(type) {
	case toggleChat:
		s.State.IsOpen = !s.State.IsOpen
	case setTyping:
		s.State.IsTyping = a.value
	case setConnected:
		s.State.IsConnected = a.value
	case setRestoring:
		s.State.IsRestoring = a.value
	case setEscalating:
		s.State.IsEscalating = a.value
	case setError:
		s.State.Error = a.message

	case addMessage:
		messages := make([]domain.Message, len(s.Messages), len(s.Messages)+1)
		copy(messages, s.Messages)
		s.Messages = append(messages, a.message)
		if s.Session == nil {
			return s, false
		}
		session := *s.Session
		session.Messages = s.Messages
		session.UpdatedAt = now
		s.Session = &session
		return s, true

	case updateMessage:
		found := false
		messages := make([]domain.Message, len(s.Messages))
		for i, m := range s.Messages {
			if m.ID == a.id {
				m.Status = a.status
				found = true
			}
			messages[i] = m
		}
		if !found {
			return s, false
		}
		s.Messages = messages
		if s.Session == nil {
			return s, false
		}
		session := *s.Session
		session.Messages = messages
		s.Session = &session
		return s, true

	case setSession:
		session := *a.session
		if session.Messages == nil {
			session.Messages = []domain.Message{}
		}
		s.Session = &session
		s.Messages = session.Messages
		return s, a.fresh

	case setEscalated:
		if s.Session == nil {
			return s, false
		}
		session := *s.Session
		session.IsEscalated = true
		s.Session = &session
		return s, true
	}
	return s, false
}
