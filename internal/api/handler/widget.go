package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"

	"github.com/Rrens/support-chat/internal/api/middleware"
	"github.com/Rrens/support-chat/internal/api/response"
	"github.com/Rrens/support-chat/internal/chat"
	"github.com/Rrens/support-chat/internal/domain"
	"github.com/Rrens/support-chat/internal/service"
)

var validate = validator.New()

const heartbeatInterval = 15 * time.Second

// SendMessageRequest is the body of POST /widget/messages
type SendMessageRequest struct {
	Content string `json:"content" validate:"max=4000"`
}

// WidgetHandler exposes the headless widget over HTTP
type WidgetHandler struct {
	widgets        *service.WidgetService
	maxUploadBytes int64
}

// NewWidgetHandler creates a new widget handler
func NewWidgetHandler(widgets *service.WidgetService, maxUploadBytes int64) *WidgetHandler {
	return &WidgetHandler{widgets: widgets, maxUploadBytes: maxUploadBytes}
}

// Get returns the current widget state
func (h *WidgetHandler) Get(w http.ResponseWriter, r *http.Request) {
	clientID, ok := middleware.GetClientID(r.Context())
	if !ok {
		response.BadRequest(w, "missing client ID")
		return
	}

	response.OK(w, h.widgets.Snapshot(r.Context(), clientID))
}

// Toggle opens or closes the drawer
func (h *WidgetHandler) Toggle(w http.ResponseWriter, r *http.Request) {
	clientID, ok := middleware.GetClientID(r.Context())
	if !ok {
		response.BadRequest(w, "missing client ID")
		return
	}

	response.OK(w, h.widgets.Toggle(r.Context(), clientID))
}

// Retry clears the error and marks the widget connected
func (h *WidgetHandler) Retry(w http.ResponseWriter, r *http.Request) {
	clientID, ok := middleware.GetClientID(r.Context())
	if !ok {
		response.BadRequest(w, "missing client ID")
		return
	}

	response.OK(w, h.widgets.Retry(r.Context(), clientID))
}

// ClearError dismisses the current error
func (h *WidgetHandler) ClearError(w http.ResponseWriter, r *http.Request) {
	clientID, ok := middleware.GetClientID(r.Context())
	if !ok {
		response.BadRequest(w, "missing client ID")
		return
	}

	response.OK(w, h.widgets.ClearError(r.Context(), clientID))
}

// SendMessage sends the text and the completed pending attachments
func (h *WidgetHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	clientID, ok := middleware.GetClientID(r.Context())
	if !ok {
		response.BadRequest(w, "missing client ID")
		return
	}

	var req SendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, "invalid request body")
		return
	}

	if err := validate.Struct(req); err != nil {
		response.BadRequest(w, err.Error())
		return
	}

	view, err := h.widgets.Send(r.Context(), clientID, req.Content)
	if err != nil {
		writeWidgetError(w, err, view)
		return
	}

	response.OK(w, view)
}

// Upload stores a multipart "file" field as a pending attachment
func (h *WidgetHandler) Upload(w http.ResponseWriter, r *http.Request) {
	clientID, ok := middleware.GetClientID(r.Context())
	if !ok {
		response.BadRequest(w, "missing client ID")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUploadBytes+1<<20)
	if err := r.ParseMultipartForm(h.maxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			response.Error(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("file exceeds %d bytes", h.maxUploadBytes))
			return
		}
		response.BadRequest(w, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		response.BadRequest(w, "no file uploaded")
		return
	}
	defer file.Close()

	if header.Size > h.maxUploadBytes {
		response.Error(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("file exceeds %d bytes", h.maxUploadBytes))
		return
	}

	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	att, err := h.widgets.Upload(r.Context(), clientID, domain.FileUpload{
		Name: header.Filename,
		Type: contentType,
		Size: header.Size,
		Body: file,
	})
	if err != nil {
		writeWidgetError(w, err, nil)
		return
	}

	response.Created(w, att)
}

// RemoveUpload drops a pending attachment
func (h *WidgetHandler) RemoveUpload(w http.ResponseWriter, r *http.Request) {
	clientID, ok := middleware.GetClientID(r.Context())
	if !ok {
		response.BadRequest(w, "missing client ID")
		return
	}

	view, err := h.widgets.RemoveUpload(r.Context(), clientID, chi.URLParam(r, "attachmentID"))
	if err != nil {
		writeWidgetError(w, err, nil)
		return
	}

	response.OK(w, view)
}

// Escalate hands the conversation to a human agent
func (h *WidgetHandler) Escalate(w http.ResponseWriter, r *http.Request) {
	clientID, ok := middleware.GetClientID(r.Context())
	if !ok {
		response.BadRequest(w, "missing client ID")
		return
	}

	view, err := h.widgets.Escalate(r.Context(), clientID)
	if err != nil {
		writeWidgetError(w, err, view)
		return
	}

	response.OK(w, view)
}

// Events streams a snapshot after every state change as server-sent events
func (h *WidgetHandler) Events(w http.ResponseWriter, r *http.Request) {
	clientID, ok := middleware.GetClientID(r.Context())
	if !ok {
		response.BadRequest(w, "missing client ID")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		response.InternalError(w, "streaming unsupported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	updates, cancel := h.widgets.Subscribe(clientID)
	defer cancel()

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			log.Debug().Str("client_id", clientID.String()).Msg("event stream closed")
			return
		case <-heartbeat.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case snap := <-updates:
			data, err := json.Marshal(snap)
			if err != nil {
				log.Warn().Err(err).Msg("failed to marshal snapshot")
				continue
			}
			fmt.Fprintf(w, "event: snapshot\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}

// writeWidgetError maps service errors to responses. Backend failures keep
// the widget view so the client sees the error flag it set.
func writeWidgetError(w http.ResponseWriter, err error, view *service.WidgetView) {
	switch {
	case errors.Is(err, chat.ErrEmptyMessage):
		response.BadRequest(w, err.Error())
	case errors.Is(err, chat.ErrSendInProgress), errors.Is(err, chat.ErrAlreadyEscalated):
		response.Conflict(w, err.Error())
	case errors.Is(err, service.ErrAttachmentNotFound):
		response.NotFound(w, err.Error())
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		response.Error(w, http.StatusServiceUnavailable, "widget is still restoring")
	case view != nil:
		response.Fail(w, http.StatusBadGateway, err.Error(), view)
	default:
		response.Error(w, http.StatusBadGateway, err.Error())
	}
}
