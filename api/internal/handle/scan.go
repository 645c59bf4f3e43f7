package handle

import (
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"

	"stemly-gateway/api/internal/llm"
	"stemly-gateway/api/internal/store"
	"stemly-gateway/api/internal/tutor"
	"stemly-gateway/api/internal/util"
)

type classifyReq struct {
	ImageB64 string `json:"image_b64"`
	Mime     string `json:"mime"`
	Text     string `json:"text"`
	UserID   string `json:"user_id"`
}

type classifyResp struct {
	ID string `json:"id,omitempty"`
	tutor.Classification
	Cached bool `json:"cached,omitempty"`
}

// Classify resolves the STEM topic of a scanned image and/or its text.
func (h *Handle) Classify(w http.ResponseWriter, r *http.Request) {
	var req classifyReq
	if !decodePOST(w, r, &req) {
		return
	}
	var img *llm.Image
	if strings.TrimSpace(req.ImageB64) != "" {
		data, hint, err := util.DecodeBase64MaybeDataURL(req.ImageB64)
		if err != nil || len(data) == 0 {
			writeError(w, http.StatusBadRequest, "bad image_b64")
			return
		}
		img = &llm.Image{Data: data, MIME: util.PickMIME(req.Mime, hint, data)}
	}
	if img == nil && strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "image_b64 or text is required")
		return
	}

	ctx, cancel := requestContext(r, defaultDeadline)
	defer cancel()

	var hash string
	if img != nil {
		hash = store.HashBytes(img.Data)
		// Text changes the answer, so only image-only requests use the cache.
		if h.d.Scans != nil && strings.TrimSpace(req.Text) == "" {
			if row, err := h.d.Scans.FindByHash(ctx, hash, scanCacheTTL); err == nil && row.Source == tutor.SourceVision {
				writeJSON(w, http.StatusOK, classifyResp{
					ID:             row.ID,
					Classification: tutor.Classification{Topic: row.Topic, Variables: row.Variables, Source: row.Source},
					Cached:         true,
				})
				return
			}
		}
	}

	res := h.d.Classifier.Classify(ctx, req.Text, img)
	out := classifyResp{Classification: res}
	if h.d.Scans != nil {
		id, err := h.d.Scans.Insert(ctx, store.ScanRow{
			UserID:    util.FirstNonEmpty(req.UserID, r.Header.Get(userIDHeader)),
			ImageHash: hash,
			Topic:     res.Topic,
			Variables: res.Variables,
			Source:    res.Source,
		})
		if err != nil {
			log.WithField("request_id", RequestID(ctx)).WithError(err).Warn("scan: history insert failed")
		} else {
			out.ID = id
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// History lists recent scans of ?user_id (or the X-User-Id header).
func (h *Handle) History(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "GET only")
		return
	}
	if h.d.Scans == nil {
		writeError(w, http.StatusServiceUnavailable, "history storage is not configured")
		return
	}
	user := util.FirstNonEmpty(r.URL.Query().Get("user_id"), r.Header.Get(userIDHeader))
	if user == "" {
		writeError(w, http.StatusBadRequest, "user_id is required")
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		limit = atoiOr(v, 0)
	}
	rows, err := h.d.Scans.ListByUser(r.Context(), user, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "history error: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"scans": rows})
}
