package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/Rrens/support-chat/internal/domain"
	"github.com/rs/zerolog/log"
)

// Store is the single source of truth for one widget: the active
// conversation and its UI flags. All mutation goes through dispatch.
type Store struct {
	backend  domain.Backend
	sessions domain.SessionStorage
	now      func() time.Time

	mu          sync.Mutex
	state       Snapshot
	initialized bool
	subscribers map[int]chan Snapshot
	nextSubID   int
}

// Option configures a Store
type Option func(*Store)

// WithClock overrides the time source used for timestamps
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates a store. It holds no session until Initialize runs.
func NewStore(backend domain.Backend, sessions domain.SessionStorage, opts ...Option) *Store {
	s := &Store{
		backend:  backend,
		sessions: sessions,
		now:      domain.Now,
		state: Snapshot{
			Messages: []domain.Message{},
			State:    domain.ChatState{IsConnected: true},
		},
		subscribers: make(map[int]chan Snapshot),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Snapshot returns a copy of the current state
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// Subscribe returns a channel that receives the latest snapshot after every
// transition. Slow readers only ever see the newest value. Call the
// returned func to unsubscribe.
func (s *Store) Subscribe() (<-chan Snapshot, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextSubID
	s.nextSubID++
	ch := make(chan Snapshot, 1)
	ch <- s.state.clone()
	s.subscribers[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.mu.Lock()
			defer s.mu.Unlock()
			delete(s.subscribers, id)
			close(ch)
		})
	}
}

// Initialize restores the last conversation or starts a new one. Restore
// failures are absorbed by falling back to a fresh session.
func (s *Store) Initialize(ctx context.Context) error {
	s.mu.Lock()
	if s.initialized {
		s.mu.Unlock()
		return ErrAlreadyInitialized
	}
	s.initialized = true
	s.mu.Unlock()

	ctx = context.WithoutCancel(ctx)

	s.dispatch(ctx, setRestoring{true})
	defer s.dispatch(ctx, setRestoring{false})

	storedID, err := s.sessions.CurrentConversationID(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("failed to read stored conversation id")
		storedID = ""
	}
	if storedID == "" {
		s.createSession(ctx)
		return nil
	}

	session, err := s.backend.RestoreSession(ctx, storedID)
	switch {
	case err != nil:
		log.Warn().Err(err).Str("conversation_id", storedID).Msg("session restore failed, starting new session")
		s.createSession(ctx)
	case session == nil:
		log.Info().Str("conversation_id", storedID).Msg("no stored session, starting new session")
		s.createSession(ctx)
	default:
		s.dispatch(ctx, setSession{session: session.Clone()})
		log.Info().
			Str("conversation_id", session.ConversationID).
			Int("messages", len(session.Messages)).
			Msg("session restored")
	}
	return nil
}

func (s *Store) createSession(ctx context.Context) {
	session := domain.NewChatSession(s.now())
	s.dispatch(ctx, setSession{session: session, fresh: true})
	log.Info().Str("conversation_id", session.ConversationID).Msg("new session created")
}

// SendMessage echoes the user's message, asks the backend for a reply and
// appends it. A failed send keeps the echo and sets the error flag; the
// backend error is also returned.
func (s *Store) SendMessage(ctx context.Context, content string, attachments []domain.FileAttachment) error {
	ctx = context.WithoutCancel(ctx)

	echo := domain.Message{
		ID:          domain.NewID(),
		Content:     content,
		Sender:      domain.SenderUser,
		Timestamp:   s.now(),
		Status:      domain.StatusSending,
		Attachments: cloneAttachments(attachments),
	}

	// the echo is optimistic: it is marked sent before the backend answers
	s.dispatch(ctx,
		addMessage{echo},
		updateMessage{id: echo.ID, status: domain.StatusSent},
		setTyping{true},
	)
	defer s.dispatch(ctx, setTyping{false})

	reply, err := s.backend.SendMessage(ctx, strings.TrimSpace(content), cloneAttachments(attachments))
	if err == nil && reply == nil {
		err = errors.New("backend returned no reply")
	}
	if err != nil {
		msg := err.Error()
		if msg == "" {
			msg = sendFailedMessage
		}
		s.dispatch(ctx, setError{&msg})
		log.Warn().Err(err).Str("message_id", echo.ID).Msg("send failed")
		return err
	}

	s.dispatch(ctx, addMessage{reply.Clone()})
	return nil
}

// UploadFile forwards to the backend. Progress values reaching onProgress
// are clamped to 0..100 and never decrease. The message list is untouched;
// the caller attaches the result to a later SendMessage.
func (s *Store) UploadFile(ctx context.Context, file domain.FileUpload, onProgress domain.ProgressFunc) (*domain.FileAttachment, error) {
	ctx = context.WithoutCancel(ctx)

	var (
		mu   sync.Mutex
		last int
	)
	forward := func(p int) {
		mu.Lock()
		p = min(max(p, last), 100)
		last = p
		mu.Unlock()
		if onProgress != nil {
			onProgress(p)
		}
	}

	att, err := s.backend.UploadFile(ctx, file, forward)
	if err != nil {
		log.Warn().Err(err).Str("file", file.Name).Msg("upload failed")
		return nil, err
	}
	done := att.Clone()
	done.Progress = nil
	return &done, nil
}

// EscalateToHuman announces the hand-off, requests an agent and marks the
// session escalated. It is a no-op returning ErrAlreadyEscalated while an
// escalation is running or once the session is escalated.
func (s *Store) EscalateToHuman(ctx context.Context) error {
	ctx = context.WithoutCancel(ctx)

	s.mu.Lock()
	if s.state.State.IsEscalating || (s.state.Session != nil && s.state.Session.IsEscalated) {
		s.mu.Unlock()
		return ErrAlreadyEscalated
	}
	s.apply(ctx,
		setEscalating{true},
		addMessage{domain.Message{
			ID:        domain.NewID(),
			Content:   connectingMessage,
			Sender:    domain.SenderSystem,
			Timestamp: s.now(),
		}},
	)
	s.mu.Unlock()
	defer s.dispatch(ctx, setEscalating{false})

	agent, err := s.backend.RequestHumanAgent(ctx)
	if err == nil && agent == nil {
		err = errors.New("backend returned no agent message")
	}
	if err != nil {
		msg := escalationFailedMessage
		s.dispatch(ctx, setError{&msg})
		log.Warn().Err(err).Msg("escalation failed")
		return err
	}

	s.dispatch(ctx, addMessage{agent.Clone()}, setEscalated{})
	log.Info().Msg("conversation escalated to human agent")
	return nil
}

// ToggleChat opens or closes the drawer
func (s *Store) ToggleChat() {
	s.dispatch(context.Background(), toggleChat{})
}

// RetryConnection clears the error and marks the widget connected. It does
// not re-issue any failed operation.
func (s *Store) RetryConnection() {
	s.dispatch(context.Background(), setError{nil}, setConnected{true})
}

// ClearError dismisses the current error
func (s *Store) ClearError() {
	s.dispatch(context.Background(), setError{nil})
}

func (s *Store) dispatch(ctx context.Context, actions ...action) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apply(ctx, actions...)
}

// apply runs the reducer, persists the session when content changed and
// notifies subscribers. Callers hold s.mu.
func (s *Store) apply(ctx context.Context, actions ...action) {
	next := s.state
	persist := false
	now := s.now()
	for _, a := range actions {
		var changed bool
		next, changed = reduce(next, a, now)
		persist = persist || changed
	}
	s.state = next

	if persist && next.Session != nil {
		if err := s.sessions.Save(ctx, next.Session); err != nil {
			log.Error().Err(err).Str("conversation_id", next.Session.ConversationID).Msg("failed to persist session")
		}
	}

	if len(s.subscribers) == 0 {
		return
	}
	for _, ch := range s.subscribers {
		snap := next.clone()
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			ch <- snap
		}
	}
}

func cloneAttachments(in []domain.FileAttachment) []domain.FileAttachment {
	if in == nil {
		return nil
	}
	out := make([]domain.FileAttachment, len(in))
	for i, a := range in {
		out[i] = a.Clone()
	}
	return out
}
