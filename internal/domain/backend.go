package domain

import (
	"context"
	"io"
)

// ProgressFunc receives upload progress in the range 0..100
type ProgressFunc func(progress int)

// FileUpload is a file selected for upload
type FileUpload struct {
	Name string
	Type string
	Size int64
	Body io.Reader
}

// Backend is the chat service the widget talks to. The in-process
// simulation in mockapi and any networked implementation share it.
type Backend interface {
	// SendMessage delivers user content and returns the reply
	SendMessage(ctx context.Context, content string, attachments []FileAttachment) (*Message, error)

	// UploadFile stores a file, reporting progress along the way
	UploadFile(ctx context.Context, file FileUpload, onProgress ProgressFunc) (*FileAttachment, error)

	// RestoreSession fetches a previous conversation, or nil when it is unknown
	RestoreSession(ctx context.Context, conversationID string) (*ChatSession, error)

	// RequestHumanAgent asks for a human to join and returns their greeting
	RequestHumanAgent(ctx context.Context) (*Message, error)
}

// BlobStore keeps uploaded file bodies and returns a resolvable URL
type BlobStore interface {
	Put(ctx context.Context, name string, body io.Reader) (string, error)
}
