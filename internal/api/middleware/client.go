package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/Rrens/support-chat/internal/api/response"
)

type contextKey string

// ClientIDKey holds the widget client id in the request context
const ClientIDKey contextKey = "clientID"

// ClientIDHeader identifies the browser the widget runs in
const ClientIDHeader = "X-Client-ID"

// ClientID requires a UUID X-Client-ID header and adds it to the context.
// EventSource cannot set headers, so a client_id query parameter is
// accepted as well.
func ClientID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(ClientIDHeader)
		if raw == "" {
			raw = r.URL.Query().Get("client_id")
		}
		if raw == "" {
			response.BadRequest(w, "missing client ID")
			return
		}

		clientID, err := uuid.Parse(raw)
		if err != nil {
			response.BadRequest(w, "invalid client ID")
			return
		}

		ctx := context.WithValue(r.Context(), ClientIDKey, clientID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetClientID gets the client ID from context
func GetClientID(ctx context.Context) (uuid.UUID, bool) {
	clientID, ok := ctx.Value(ClientIDKey).(uuid.UUID)
	return clientID, ok
}
