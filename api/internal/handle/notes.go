package handle

import (
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"

	"stemly-gateway/api/internal/tutor"
)

type notesReq struct {
	Topic     string   `json:"topic"`
	Variables []string `json:"variables"`
}

func (h *Handle) GenerateNotes(w http.ResponseWriter, r *http.Request) {
	var req notesReq
	if !decodePOST(w, r, &req) {
		return
	}
	topic := strings.TrimSpace(req.Topic)
	if topic == "" {
		writeError(w, http.StatusBadRequest, "topic is required")
		return
	}
	ctx, cancel := requestContext(r, defaultDeadline)
	defer cancel()

	engine := h.d.Notes.Engine()
	if h.d.NotesCache != nil {
		var cached tutor.Notes
		if err := h.d.NotesCache.Find(ctx, topic, req.Variables, engine, notesCacheTTL, &cached); err == nil {
			writeJSON(w, http.StatusOK, cached)
			return
		}
	}

	notes := h.d.Notes.Generate(ctx, topic, req.Variables)
	if h.d.NotesCache != nil && !notes.Fallback {
		if err := h.d.NotesCache.Upsert(ctx, topic, req.Variables, engine, notes); err != nil {
			log.WithField("request_id", RequestID(ctx)).WithError(err).Warn("notes: cache upsert failed")
		}
	}
	writeJSON(w, http.StatusOK, notes)
}

type askReq struct {
	Topic    string         `json:"topic"`
	Notes    map[string]any `json:"notes"`
	Question string         `json:"question"`
}

// AskNotes answers a follow-up question about previously generated notes.
func (h *Handle) AskNotes(w http.ResponseWriter, r *http.Request) {
	var req askReq
	if !decodePOST(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Topic) == "" || strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "topic and question are required")
		return
	}
	ctx, cancel := requestContext(r, defaultDeadline)
	defer cancel()
	writeJSON(w, http.StatusOK, h.d.Notes.FollowUp(ctx, req.Topic, req.Notes, req.Question))
}
