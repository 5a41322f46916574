package chat

import (
	"context"
	"errors"
	"testing"

	"github.com/Rrens/support-chat/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newComposerFixture(t *testing.T) (*Composer, *MockBackend) {
	t.Helper()
	backend := new(MockBackend)
	sessions := new(MockSessionStorage)
	sessions.On("CurrentConversationID", mock.Anything).Return("", nil)
	sessions.On("Save", mock.Anything, mock.Anything).Return(nil)

	store := NewStore(backend, sessions)
	require.NoError(t, store.Initialize(context.Background()))
	return NewComposer(store), backend
}

func TestComposer_AttachSuccess(t *testing.T) {
	composer, backend := newComposerFixture(t)

	var progressDuring []int
	backend.On("UploadFile", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			progress := args.Get(2).(domain.ProgressFunc)
			for _, p := range []int{50, 100} {
				progress(p)
				progressDuring = append(progressDuring, *composer.Pending()[0].Progress)
			}
		}).
		Return(&domain.FileAttachment{ID: "f1", Name: "a.png", Type: "image/png", Size: 5, URL: "blob:f1"}, nil)

	att, err := composer.Attach(context.Background(), domain.FileUpload{Name: "a.png", Type: "image/png", Size: 5})
	require.NoError(t, err)
	assert.Equal(t, "f1", att.ID)
	assert.Equal(t, []int{50, 100}, progressDuring)

	pending := composer.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, "f1", pending[0].ID)
	assert.Equal(t, "blob:f1", pending[0].URL)
	require.NotNil(t, pending[0].Progress)
	assert.Equal(t, 100, *pending[0].Progress)
}

func TestComposer_AttachFailureDropsPlaceholder(t *testing.T) {
	composer, backend := newComposerFixture(t)

	var listedDuring int
	backend.On("UploadFile", mock.Anything, mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { listedDuring = len(composer.Pending()) }).
		Return(nil, errors.New("connection reset"))

	att, err := composer.Attach(context.Background(), domain.FileUpload{Name: "a.png"})
	assert.Nil(t, att)
	assert.Error(t, err)
	assert.Equal(t, 1, listedDuring)
	assert.Empty(t, composer.Pending())
	assert.Nil(t, composer.store.Snapshot().State.Error)
}

func TestComposer_Send(t *testing.T) {
	t.Run("empty input without attachments", func(t *testing.T) {
		composer, backend := newComposerFixture(t)

		err := composer.Send(context.Background(), "   ")
		assert.ErrorIs(t, err, ErrEmptyMessage)
		backend.AssertNotCalled(t, "SendMessage", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("skips attachments still uploading and clears the list", func(t *testing.T) {
		composer, backend := newComposerFixture(t)
		half, full := 40, 100
		composer.files = []domain.FileAttachment{
			{ID: "done", Name: "done.txt", Progress: &full},
			{ID: "busy", Name: "busy.txt", Progress: &half},
			{ID: "plain", Name: "plain.txt"},
		}

		backend.On("SendMessage", mock.Anything, "hello", mock.MatchedBy(func(att []domain.FileAttachment) bool {
			return len(att) == 2 && att[0].ID == "done" && att[1].ID == "plain"
		})).Return(&domain.Message{ID: "r", Sender: domain.SenderAI, Timestamp: domain.Now()}, nil)

		require.NoError(t, composer.Send(context.Background(), "  hello "))
		assert.Empty(t, composer.Pending())

		messages := composer.store.Snapshot().Messages
		require.Len(t, messages, 2)
		assert.Equal(t, "hello", messages[0].Content)
		backend.AssertExpectations(t)
	})

	t.Run("attachments only", func(t *testing.T) {
		composer, backend := newComposerFixture(t)
		composer.files = []domain.FileAttachment{{ID: "a"}}
		backend.On("SendMessage", mock.Anything, "", mock.Anything).
			Return(&domain.Message{ID: "r", Sender: domain.SenderAI, Timestamp: domain.Now()}, nil)

		assert.NoError(t, composer.Send(context.Background(), ""))
	})

	t.Run("failed send still clears the list", func(t *testing.T) {
		composer, backend := newComposerFixture(t)
		composer.files = []domain.FileAttachment{{ID: "a"}}
		backend.On("SendMessage", mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("offline"))

		assert.Error(t, composer.Send(context.Background(), "hi"))
		assert.Empty(t, composer.Pending())
	})

	t.Run("rejects overlapping sends", func(t *testing.T) {
		composer, _ := newComposerFixture(t)
		composer.sending = true

		assert.ErrorIs(t, composer.Send(context.Background(), "hi"), ErrSendInProgress)
	})
}

func TestComposer_Remove(t *testing.T) {
	composer, _ := newComposerFixture(t)
	composer.files = []domain.FileAttachment{{ID: "a"}, {ID: "b"}}

	assert.True(t, composer.Remove("a"))
	assert.False(t, composer.Remove("a"))

	pending := composer.Pending()
	require.Len(t, pending, 1)
	assert.Equal(t, "b", pending[0].ID)
}
