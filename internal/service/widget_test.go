package service

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rrens/support-chat/internal/chat"
	"github.com/Rrens/support-chat/internal/domain"
	"github.com/Rrens/support-chat/internal/mockapi"
	"github.com/Rrens/support-chat/internal/repository/memory"
	"github.com/Rrens/support-chat/internal/storage"
)

func simulatedBackend(failureRate float64) BackendFactory {
	return func(sessions domain.SessionStorage) domain.Backend {
		return mockapi.NewBackend(
			mockapi.Options{UploadSteps: 2, FailureRate: failureRate},
			sessions,
			mockapi.WithRand(rand.NewPCG(3, 5)),
		)
	}
}

func waitReady(t *testing.T, svc *WidgetService, clientID uuid.UUID) *WidgetView {
	t.Helper()
	var view *WidgetView
	require.Eventually(t, func() bool {
		view = svc.Snapshot(context.Background(), clientID)
		return view.Session != nil && !view.State.IsRestoring
	}, time.Second, 5*time.Millisecond)
	return view
}

func TestWidgetService_Snapshot(t *testing.T) {
	kv := memory.NewKVStore()
	svc := NewWidgetService(kv, simulatedBackend(0))
	clientID := uuid.New()

	view := waitReady(t, svc, clientID)
	assert.Empty(t, view.Messages)
	assert.True(t, view.State.IsConnected)
	assert.Empty(t, view.Pending)
	assert.Equal(t, 1, svc.Clients())

	sessions := storage.NewSessions(storage.NewPrefixed(kv, Namespace(clientID)))
	id, err := sessions.CurrentConversationID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, view.Session.ConversationID, id)
}

func TestWidgetService_ClientsAreIsolated(t *testing.T) {
	svc := NewWidgetService(memory.NewKVStore(), simulatedBackend(0))
	a, b := uuid.New(), uuid.New()

	_, err := svc.Send(context.Background(), a, "hello")
	require.NoError(t, err)

	viewA := waitReady(t, svc, a)
	viewB := waitReady(t, svc, b)
	assert.Len(t, viewA.Messages, 2)
	assert.Empty(t, viewB.Messages)
	assert.NotEqual(t, viewA.Session.ConversationID, viewB.Session.ConversationID)
}

func TestWidgetService_RestoresAcrossRestarts(t *testing.T) {
	kv := memory.NewKVStore()
	clientID := uuid.New()

	first := NewWidgetService(kv, simulatedBackend(0))
	view, err := first.Send(context.Background(), clientID, "remember me")
	require.NoError(t, err)
	conversationID := view.Session.ConversationID

	second := NewWidgetService(kv, simulatedBackend(0))
	restored := waitReady(t, second, clientID)
	assert.Equal(t, conversationID, restored.Session.ConversationID)
	require.Len(t, restored.Messages, 2)
	assert.Equal(t, "remember me", restored.Messages[0].Content)
}

func TestWidgetService_Send(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		svc := NewWidgetService(memory.NewKVStore(), simulatedBackend(0))
		view, err := svc.Send(context.Background(), uuid.New(), "  hi there  ")
		require.NoError(t, err)

		require.Len(t, view.Messages, 2)
		assert.Equal(t, "hi there", view.Messages[0].Content)
		assert.Equal(t, domain.SenderUser, view.Messages[0].Sender)
		assert.Equal(t, domain.SenderAI, view.Messages[1].Sender)
		assert.False(t, view.State.IsTyping)
		assert.Nil(t, view.State.Error)
	})

	t.Run("backend failure", func(t *testing.T) {
		svc := NewWidgetService(memory.NewKVStore(), simulatedBackend(1))
		view, err := svc.Send(context.Background(), uuid.New(), "hi")
		assert.ErrorIs(t, err, mockapi.ErrTransientNetwork)

		require.NotNil(t, view)
		require.Len(t, view.Messages, 1)
		assert.Equal(t, domain.StatusSent, view.Messages[0].Status)
		require.NotNil(t, view.State.Error)
		assert.Equal(t, mockapi.ErrTransientNetwork.Error(), *view.State.Error)
	})

	t.Run("empty", func(t *testing.T) {
		svc := NewWidgetService(memory.NewKVStore(), simulatedBackend(0))
		view, err := svc.Send(context.Background(), uuid.New(), "   ")
		assert.ErrorIs(t, err, chat.ErrEmptyMessage)
		assert.Empty(t, view.Messages)
	})
}

func TestWidgetService_UploadAndSend(t *testing.T) {
	svc := NewWidgetService(memory.NewKVStore(), simulatedBackend(0))
	ctx := context.Background()
	clientID := uuid.New()

	att, err := svc.Upload(ctx, clientID, domain.FileUpload{
		Name: "notes.txt",
		Type: "text/plain",
		Size: 5,
		Body: strings.NewReader("hello"),
	})
	require.NoError(t, err)
	require.NotNil(t, att.Progress)
	assert.Equal(t, 100, *att.Progress)

	view := svc.Snapshot(ctx, clientID)
	require.Len(t, view.Pending, 1)
	assert.Equal(t, "notes.txt", view.Pending[0].Name)
	assert.Empty(t, view.Messages)

	view, err = svc.Send(ctx, clientID, "")
	require.NoError(t, err)
	assert.Empty(t, view.Pending)
	require.Len(t, view.Messages, 2)
	require.Len(t, view.Messages[0].Attachments, 1)
	assert.Equal(t, att.ID, view.Messages[0].Attachments[0].ID)
}

func TestWidgetService_RemoveUpload(t *testing.T) {
	svc := NewWidgetService(memory.NewKVStore(), simulatedBackend(0))
	ctx := context.Background()
	clientID := uuid.New()

	att, err := svc.Upload(ctx, clientID, domain.FileUpload{Name: "a.png", Type: "image/png"})
	require.NoError(t, err)

	_, err = svc.RemoveUpload(ctx, clientID, "missing")
	assert.ErrorIs(t, err, ErrAttachmentNotFound)

	view, err := svc.RemoveUpload(ctx, clientID, att.ID)
	require.NoError(t, err)
	assert.Empty(t, view.Pending)
}

func TestWidgetService_Escalate(t *testing.T) {
	svc := NewWidgetService(memory.NewKVStore(), simulatedBackend(0))
	ctx := context.Background()
	clientID := uuid.New()

	view, err := svc.Escalate(ctx, clientID)
	require.NoError(t, err)
	assert.True(t, view.Session.IsEscalated)
	require.Len(t, view.Messages, 2)
	assert.Equal(t, domain.SenderSystem, view.Messages[0].Sender)
	assert.Equal(t, domain.SenderAgent, view.Messages[1].Sender)

	_, err = svc.Escalate(ctx, clientID)
	assert.ErrorIs(t, err, chat.ErrAlreadyEscalated)
}

func TestWidgetService_UIFlags(t *testing.T) {
	svc := NewWidgetService(memory.NewKVStore(), simulatedBackend(1))
	ctx := context.Background()
	clientID := uuid.New()

	assert.True(t, svc.Toggle(ctx, clientID).State.IsOpen)
	assert.False(t, svc.Toggle(ctx, clientID).State.IsOpen)

	_, err := svc.Send(ctx, clientID, "hi")
	require.Error(t, err)

	assert.Nil(t, svc.ClearError(ctx, clientID).State.Error)

	_, err = svc.Send(ctx, clientID, "again")
	require.Error(t, err)

	view := svc.Retry(ctx, clientID)
	assert.Nil(t, view.State.Error)
	assert.True(t, view.State.IsConnected)
}

func TestWidgetService_Subscribe(t *testing.T) {
	svc := NewWidgetService(memory.NewKVStore(), simulatedBackend(0))
	clientID := uuid.New()
	waitReady(t, svc, clientID)

	updates, cancel := svc.Subscribe(clientID)
	defer cancel()
	<-updates

	svc.Toggle(context.Background(), clientID)

	select {
	case snap := <-updates:
		assert.True(t, snap.State.IsOpen)
	case <-time.After(time.Second):
		t.Fatal("no snapshot after toggle")
	}
}

func TestWidgetService_SendWaitsForContext(t *testing.T) {
	svc := NewWidgetService(memory.NewKVStore(), func(sessions domain.SessionStorage) domain.Backend {
		return mockapi.NewBackend(mockapi.Options{UploadSteps: 1, RestoreDelay: time.Hour}, sessions)
	})
	clientID := uuid.New()

	// a stored pointer forces a slow restore
	ns := storage.NewSessions(storage.NewPrefixed(svc.kv, Namespace(clientID)))
	require.NoError(t, ns.Save(context.Background(), domain.NewChatSession(time.Now())))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := svc.Send(ctx, clientID, "hi")
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.True(t, svc.Snapshot(context.Background(), clientID).State.IsRestoring)
}
