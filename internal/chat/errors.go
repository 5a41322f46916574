package chat

import "errors"

var (
	ErrAlreadyInitialized = errors.New("store already initialized")
	ErrAlreadyEscalated   = errors.New("conversation already escalated")
	ErrEmptyMessage       = errors.New("message has no content or attachments")
	ErrSendInProgress     = errors.New("a message is already being sent")
)

const (
	sendFailedMessage       = "Failed to send message"
	escalationFailedMessage = "Failed to connect to agent. Please try again."
	connectingMessage       = "Connecting you to a human agent..."
)
