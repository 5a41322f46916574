package chat

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/Rrens/support-chat/internal/domain"
)

// Composer is the input side of the widget. It tracks attachments that are
// uploading or uploaded but not yet sent; they live outside the message
// list until Send.
type Composer struct {
	store *Store

	mu      sync.Mutex
	files   []domain.FileAttachment
	sending bool
}

// NewComposer creates a composer that sends through store
func NewComposer(store *Store) *Composer {
	return &Composer{store: store}
}

// Attach uploads a file. A placeholder with progress 0 is listed right
// away and tracks progress; it is replaced by the uploaded attachment on
// success and dropped on failure.
func (c *Composer) Attach(ctx context.Context, file domain.FileUpload) (*domain.FileAttachment, error) {
	zero := 0
	tempID := domain.NewID()

	c.mu.Lock()
	c.files = append(c.files, domain.FileAttachment{
		ID:       tempID,
		Name:     file.Name,
		Type:     file.Type,
		Size:     file.Size,
		Progress: &zero,
	})
	c.mu.Unlock()

	uploaded, err := c.store.UploadFile(ctx, file, func(p int) {
		c.update(tempID, func(a *domain.FileAttachment) {
			a.Progress = &p
		})
	})
	if err != nil {
		c.Remove(tempID)
		return nil, err
	}

	done := uploaded.Clone()
	full := 100
	done.Progress = &full
	c.update(tempID, func(a *domain.FileAttachment) {
		*a = done.Clone()
	})
	return &done, nil
}

// Remove drops a pending attachment. It reports whether one was removed.
func (c *Composer) Remove(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	before := len(c.files)
	c.files = slices.DeleteFunc(c.files, func(a domain.FileAttachment) bool {
		return a.ID == id
	})
	return len(c.files) != before
}

// Pending returns the attachments waiting to be sent
func (c *Composer) Pending() []domain.FileAttachment {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cloneAttachments(c.files)
}

// Send trims the input and sends it with every completed attachment.
// Attachments still uploading are left out. The pending list is cleared
// once the store has handled the message, whatever the outcome.
func (c *Composer) Send(ctx context.Context, input string) error {
	content := strings.TrimSpace(input)

	c.mu.Lock()
	if content == "" && len(c.files) == 0 {
		c.mu.Unlock()
		return ErrEmptyMessage
	}
	if c.sending {
		c.mu.Unlock()
		return ErrSendInProgress
	}
	c.sending = true

	var completed []domain.FileAttachment
	for _, a := range c.files {
		if !a.InFlight() {
			completed = append(completed, a.Clone())
		}
	}
	c.mu.Unlock()

	err := c.store.SendMessage(ctx, content, completed)

	c.mu.Lock()
	c.files = nil
	c.sending = false
	c.mu.Unlock()

	return err
}

func (c *Composer) update(id string, fn func(*domain.FileAttachment)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.files {
		if c.files[i].ID == id {
			fn(&c.files[i])
			return
		}
	}
}
