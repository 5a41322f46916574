package domain

import (
	"time"

	"github.com/google/uuid"
)

// Sender identifies who authored a message
type Sender string

const (
	SenderUser   Sender = "user"
	SenderAI     Sender = "ai"
	SenderAgent  Sender = "agent"
	SenderSystem Sender = "system"
)

// MessageStatus tracks delivery of user messages
type MessageStatus string

const (
	StatusSending MessageStatus = "sending"
	StatusSent    MessageStatus = "sent"
	StatusError   MessageStatus = "error"
)

// Sentiment is a coarse classification attached to non-user messages
type Sentiment string

const (
	SentimentPositive Sentiment = "positive"
	SentimentNeutral  Sentiment = "neutral"
	SentimentNegative Sentiment = "negative"
)

// Message represents a single entry in the conversation thread
type Message struct {
	ID               string            `json:"id"`
	Content          string            `json:"content"`
	Sender           Sender            `json:"sender"`
	Timestamp        time.Time         `json:"timestamp"`
	Status           MessageStatus     `json:"status,omitempty"`
	Attachments      []FileAttachment  `json:"attachments,omitempty"`
	SuggestedActions []SuggestedAction `json:"suggestedActions,omitempty"`
	Sentiment        Sentiment         `json:"sentiment,omitempty"`
}

// FileAttachment describes an uploaded file. Progress is only set while
// an upload is in flight or right after it completed.
type FileAttachment struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Type     string `json:"type"`
	Size     int64  `json:"size"`
	URL      string `json:"url"`
	Progress *int   `json:"progress,omitempty"`
}

// InFlight reports whether the attachment is still uploading
func (a FileAttachment) InFlight() bool {
	return a.Progress != nil && *a.Progress < 100
}

// SuggestedAction is a quick reply offered alongside a message
type SuggestedAction struct {
	ID     string `json:"id"`
	Label  string `json:"label"`
	Action string `json:"action"`
}

// NewID returns a fresh identifier for messages, attachments and sessions
func NewID() string {
	return uuid.NewString()
}

// Now returns the current time without a monotonic reading so that values
// compare equal after a storage round trip.
func Now() time.Time {
	return time.Now().UTC().Round(0)
}

// Clone returns a deep copy of the message
func (m Message) Clone() Message {
	out := m
	if m.Attachments != nil {
		out.Attachments = make([]FileAttachment, len(m.Attachments))
		for i, a := range m.Attachments {
			out.Attachments[i] = a.Clone()
		}
	}
	if m.SuggestedActions != nil {
		out.SuggestedActions = append([]SuggestedAction(nil), m.SuggestedActions...)
	}
	return out
}

// Clone returns a copy that does not share the progress pointer
func (a FileAttachment) Clone() FileAttachment {
	if a.Progress != nil {
		p := *a.Progress
		a.Progress = &p
	}
	return a
}
