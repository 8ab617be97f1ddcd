package httpapi

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/roach88/storefront/internal/session"
)

// handleViewEvents streams every published view as a server-sent event
// named "view". The session counts as active for as long as the stream is
// open. The stream ends when the client goes away or the session closes.
func (s *Server) handleViewEvents(w http.ResponseWriter, r *http.Request, sess *session.Session) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		WriteJSONError(w, http.StatusInternalServerError, "Streaming unsupported.", "internal", "")
		return
	}

	views, cancel := sess.Views.Watch()
	defer cancel()
	detach := s.sessions.Attach(sess)
	defer detach()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case v, ok := <-views:
			if !ok {
				return
			}
			data, err := json.Marshal(v)
			if err != nil {
				slog.Error("encode view", "session", sess.ID, "error", err)
				return
			}
			if _, err := fmt.Fprintf(w, "id: %d\nevent: view\ndata: %s\n\n", v.Seq, data); err != nil {
				return
			}
			flusher.Flush()
			s.sessions.Touch(sess)
		}
	}
}
