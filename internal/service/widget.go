package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/Rrens/support-chat/internal/chat"
	"github.com/Rrens/support-chat/internal/domain"
	"github.com/Rrens/support-chat/internal/storage"
)

// ErrAttachmentNotFound is returned when removing an unknown pending attachment
var ErrAttachmentNotFound = errors.New("attachment not found")

// BackendFactory builds the chat backend of one client over that client's
// session storage
type BackendFactory func(sessions domain.SessionStorage) domain.Backend

// WidgetView is what a client sees: the store snapshot plus the
// attachments waiting to be sent
type WidgetView struct {
	chat.Snapshot
	Pending []domain.FileAttachment `json:"pendingAttachments"`
}

type widget struct {
	store    *chat.Store
	composer *chat.Composer
	ready    chan struct{}
}

// WidgetService hosts one headless widget per client id. Each widget keeps
// its session in its own namespace of the shared key-value store.
type WidgetService struct {
	kv         domain.KeyValueStore
	newBackend BackendFactory
	storeOpts  []chat.Option

	mu      sync.Mutex
	widgets map[uuid.UUID]*widget
}

// NewWidgetService creates a widget service
func NewWidgetService(kv domain.KeyValueStore, newBackend BackendFactory, opts ...chat.Option) *WidgetService {
	return &WidgetService{
		kv:         kv,
		newBackend: newBackend,
		storeOpts:  opts,
		widgets:    make(map[uuid.UUID]*widget),
	}
}

// Namespace is the key prefix of a client's storage
func Namespace(clientID uuid.UUID) string {
	return fmt.Sprintf("client:%s:", clientID)
}

// widget returns the client's widget, creating and initializing it on
// first use. Initialization runs in the background; ready closes when it
// is done.
func (s *WidgetService) widget(clientID uuid.UUID) *widget {
	s.mu.Lock()
	defer s.mu.Unlock()

	if w, ok := s.widgets[clientID]; ok {
		return w
	}

	sessions := storage.NewSessions(storage.NewPrefixed(s.kv, Namespace(clientID)))
	store := chat.NewStore(s.newBackend(sessions), sessions, s.storeOpts...)
	w := &widget{
		store:    store,
		composer: chat.NewComposer(store),
		ready:    make(chan struct{}),
	}
	s.widgets[clientID] = w

	go func() {
		defer close(w.ready)
		if err := store.Initialize(context.Background()); err != nil {
			log.Error().Err(err).Str("client_id", clientID.String()).Msg("failed to initialize widget")
		}
	}()

	log.Info().Str("client_id", clientID.String()).Msg("widget created")
	return w
}

// ready returns the initialized widget of the client, waiting for a
// running restore to finish
func (s *WidgetService) ready(ctx context.Context, clientID uuid.UUID) (*widget, error) {
	w := s.widget(clientID)
	select {
	case <-w.ready:
		return w, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (w *widget) view() *WidgetView {
	return &WidgetView{
		Snapshot: w.store.Snapshot(),
		Pending:  w.composer.Pending(),
	}
}

// Clients reports how many widgets are live
func (s *WidgetService) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.widgets)
}

// Snapshot returns the client's widget without waiting for a restore;
// IsRestoring is set while one runs
func (s *WidgetService) Snapshot(_ context.Context, clientID uuid.UUID) *WidgetView {
	return s.widget(clientID).view()
}

// Subscribe streams snapshots of the client's store
func (s *WidgetService) Subscribe(clientID uuid.UUID) (<-chan chat.Snapshot, func()) {
	return s.widget(clientID).store.Subscribe()
}

// Toggle opens or closes the client's drawer
func (s *WidgetService) Toggle(_ context.Context, clientID uuid.UUID) *WidgetView {
	w := s.widget(clientID)
	w.store.ToggleChat()
	return w.view()
}

// Retry clears the error and marks the client's widget connected
func (s *WidgetService) Retry(_ context.Context, clientID uuid.UUID) *WidgetView {
	w := s.widget(clientID)
	w.store.RetryConnection()
	return w.view()
}

// ClearError dismisses the client's current error
func (s *WidgetService) ClearError(_ context.Context, clientID uuid.UUID) *WidgetView {
	w := s.widget(clientID)
	w.store.ClearError()
	return w.view()
}

// Send sends content together with the completed pending attachments.
// A backend failure still returns the view, which carries the error flag.
func (s *WidgetService) Send(ctx context.Context, clientID uuid.UUID, content string) (*WidgetView, error) {
	w, err := s.ready(ctx, clientID)
	if err != nil {
		return nil, err
	}
	err = w.composer.Send(ctx, content)
	return w.view(), err
}

// Upload adds a pending attachment for the client's next message
func (s *WidgetService) Upload(ctx context.Context, clientID uuid.UUID, file domain.FileUpload) (*domain.FileAttachment, error) {
	w, err := s.ready(ctx, clientID)
	if err != nil {
		return nil, err
	}
	att, err := w.composer.Attach(ctx, file)
	if err != nil {
		return nil, fmt.Errorf("failed to upload %s: %w", file.Name, err)
	}
	return att, nil
}

// RemoveUpload drops a pending attachment
func (s *WidgetService) RemoveUpload(_ context.Context, clientID uuid.UUID, attachmentID string) (*WidgetView, error) {
	w := s.widget(clientID)
	if !w.composer.Remove(attachmentID) {
		return nil, ErrAttachmentNotFound
	}
	return w.view(), nil
}

// Escalate hands the client's conversation to a human agent
func (s *WidgetService) Escalate(ctx context.Context, clientID uuid.UUID) (*WidgetView, error) {
	w, err := s.ready(ctx, clientID)
	if err != nil {
		return nil, err
	}
	err = w.store.EscalateToHuman(ctx)
	return w.view(), err
}
