package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/aretw0/parlance/pkg/domain"
	"github.com/go-chi/chi/v5"
)

// keepAlive is the interval of SSE comment frames on an idle stream.
const keepAlive = 15 * time.Second

// Stream handles GET /sessions/{id}/stream.
//
// The first frame is a "snapshot" event with the full state. Every later
// change is a "diff" event holding only what changed (domain.SnapshotDiff).
// The stream ends when the client goes away or the session stops.
func (s *Server) Stream(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		s.logger.Error("Stream: Streaming not supported")
		return
	}

	id := chi.URLParam(r, "id")
	d, err := s.sessions.Get(id)
	if err != nil {
		s.fail(w, "get session", err)
		return
	}

	ctx := r.Context()
	updates := d.Subscribe(ctx)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	last := d.Snapshot()
	if err := writeEvent(w, "snapshot", last); err != nil {
		return
	}
	flusher.Flush()
	s.logger.Debug("SSE: client subscribed", "session_id", id)

	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("SSE: client disconnected", "session_id", id)
			return
		case <-ticker.C:
			fmt.Fprint(w, ": keep-alive\n\n")
			flusher.Flush()
		case snap, ok := <-updates:
			if !ok {
				fmt.Fprint(w, "event: closed\ndata: {}\n\n")
				flusher.Flush()
				return
			}
			if snap.Sequence <= last.Sequence {
				continue
			}
			diff := domain.Diff(&last, &snap)
			last = snap
			if diff == nil {
				continue
			}
			if err := writeEvent(w, "diff", diff); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func writeEvent(w http.ResponseWriter, name string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
	return err
}
