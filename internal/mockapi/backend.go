package mockapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/Rrens/support-chat/internal/domain"
	"github.com/rs/zerolog/log"
)

// ErrTransientNetwork is the simulated network failure of SendMessage
var ErrTransientNetwork = errors.New("Failed to send message. Please try again.")

var aiResponses = []string{
	"Thanks for reaching out! I'd be happy to help you with that.",
	"I understand your concern. Let me look into this for you.",
	"That's a great question! Here's what I can tell you...",
	"I've found some information that might help you.",
	"Is there anything else you'd like to know about this?",
}

var agentResponses = []string{
	"Hi! I'm Sarah, your dedicated support agent. How can I assist you today?",
	"Thank you for your patience. I've reviewed your case and have an update.",
	"I completely understand your situation. Let me help resolve this for you.",
}

// Options tunes the simulated latency and failure injection
type Options struct {
	SendLatencyMin time.Duration
	SendLatencyMax time.Duration
	FailureRate    float64
	UploadSteps    int
	UploadInterval time.Duration
	RestoreDelay   time.Duration
	AgentDelay     time.Duration
}

// DefaultOptions mirrors the timings of the hosted widget demo
func DefaultOptions() Options {
	return Options{
		SendLatencyMin: 500 * time.Millisecond,
		SendLatencyMax: 1500 * time.Millisecond,
		FailureRate:    0.05,
		UploadSteps:    10,
		UploadInterval: 200 * time.Millisecond,
		RestoreDelay:   1500 * time.Millisecond,
		AgentDelay:     2 * time.Second,
	}
}

// Backend is an in-process stand-in for the chat service
type Backend struct {
	opts     Options
	sessions domain.SessionStorage
	blobs    domain.BlobStore

	mu  sync.Mutex
	rng *rand.Rand
}

// Option configures a Backend
type Option func(*Backend)

// WithRand sets the random source, mainly for deterministic tests
func WithRand(src rand.Source) Option {
	return func(b *Backend) {
		b.rng = rand.New(src)
	}
}

// WithBlobStore keeps uploaded bodies in store instead of discarding them
func WithBlobStore(store domain.BlobStore) Option {
	return func(b *Backend) {
		b.blobs = store
	}
}

// NewBackend creates a simulated backend. sessions is where RestoreSession
// looks for previous conversations.
func NewBackend(opts Options, sessions domain.SessionStorage, options ...Option) *Backend {
	if opts.UploadSteps <= 0 {
		opts.UploadSteps = 1
	}
	if opts.SendLatencyMax < opts.SendLatencyMin {
		opts.SendLatencyMax = opts.SendLatencyMin
	}

	b := &Backend{
		opts:     opts,
		sessions: sessions,
		rng:      rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), 0x5eed)),
	}
	for _, o := range options {
		o(b)
	}
	return b
}

// SendMessage simulates a round trip to the assistant
func (b *Backend) SendMessage(ctx context.Context, content string, attachments []domain.FileAttachment) (*domain.Message, error) {
	if err := sleep(ctx, b.sendLatency()); err != nil {
		return nil, err
	}

	if b.float64() < b.opts.FailureRate {
		log.Debug().Int("content_length", len(content)).Msg("simulated send failure")
		return nil, ErrTransientNetwork
	}

	msg := &domain.Message{
		ID:        domain.NewID(),
		Content:   aiResponses[b.intN(len(aiResponses))],
		Sender:    domain.SenderAI,
		Timestamp: domain.Now(),
		Status:    domain.StatusSent,
		Sentiment: domain.SentimentNeutral,
	}
	if b.float64() > 0.5 {
		msg.SuggestedActions = []domain.SuggestedAction{
			{ID: domain.NewID(), Label: "Book a Demo", Action: "book_demo"},
			{ID: domain.NewID(), Label: "View Pricing", Action: "view_pricing"},
		}
	}
	if b.float64() > 0.7 {
		msg.Sentiment = domain.SentimentPositive
	}

	log.Debug().
		Int("attachments", len(attachments)).
		Str("sentiment", string(msg.Sentiment)).
		Msg("simulated assistant reply")

	return msg, nil
}

// UploadFile reports progress in even steps ending at exactly 100
func (b *Backend) UploadFile(ctx context.Context, file domain.FileUpload, onProgress domain.ProgressFunc) (*domain.FileAttachment, error) {
	steps := b.opts.UploadSteps
	for i := 1; i <= steps; i++ {
		if err := sleep(ctx, b.opts.UploadInterval); err != nil {
			return nil, err
		}
		if onProgress != nil {
			onProgress(i * 100 / steps)
		}
	}

	id := domain.NewID()
	url := "blob:" + id
	if b.blobs != nil && file.Body != nil {
		stored, err := b.blobs.Put(ctx, file.Name, file.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to store upload: %w", err)
		}
		url = stored
	} else if file.Body != nil {
		io.Copy(io.Discard, file.Body)
	}

	return &domain.FileAttachment{
		ID:   id,
		Name: file.Name,
		Type: file.Type,
		Size: file.Size,
		URL:  url,
	}, nil
}

// RestoreSession returns the stored snapshot, or nil when none exists
func (b *Backend) RestoreSession(ctx context.Context, conversationID string) (*domain.ChatSession, error) {
	if err := sleep(ctx, b.opts.RestoreDelay); err != nil {
		return nil, err
	}
	if b.sessions == nil {
		return nil, nil
	}
	return b.sessions.Load(ctx, conversationID)
}

// RequestHumanAgent always connects and returns the agent's greeting
func (b *Backend) RequestHumanAgent(ctx context.Context) (*domain.Message, error) {
	if err := sleep(ctx, b.opts.AgentDelay); err != nil {
		return nil, err
	}

	return &domain.Message{
		ID:        domain.NewID(),
		Content:   agentResponses[0],
		Sender:    domain.SenderAgent,
		Timestamp: domain.Now(),
		Status:    domain.StatusSent,
	}, nil
}

func (b *Backend) sendLatency() time.Duration {
	spread := b.opts.SendLatencyMax - b.opts.SendLatencyMin
	if spread <= 0 {
		return b.opts.SendLatencyMin
	}
	return b.opts.SendLatencyMin + time.Duration(b.float64()*float64(spread))
}

func (b *Backend) float64() float64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rng.Float64()
}

func (b *Backend) intN(n int) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.rng.IntN(n)
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
