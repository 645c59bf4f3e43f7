package handle

import (
	"errors"
	"net/http"
	"strings"

	log "github.com/sirupsen/logrus"

	"stemly-gateway/api/internal/imagegen"
	"stemly-gateway/api/internal/llm"
)

type updateReq struct {
	TemplateID  string             `json:"template_id"`
	Parameters  map[string]float64 `json:"parameters"`
	Instruction string             `json:"instruction"`
	UserID      string             `json:"user_id"`
}

// UpdateVisualiser turns a natural-language instruction into new simulation
// parameters. Without parameters in the request the last saved state of the
// user is used.
func (h *Handle) UpdateVisualiser(w http.ResponseWriter, r *http.Request) {
	var req updateReq
	if !decodePOST(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.TemplateID) == "" || strings.TrimSpace(req.Instruction) == "" {
		writeError(w, http.StatusBadRequest, "template_id and instruction are required")
		return
	}
	ctx, cancel := requestContext(r, defaultDeadline)
	defer cancel()

	params := req.Parameters
	if len(params) == 0 && h.d.States != nil && req.UserID != "" {
		if saved, err := h.d.States.Get(ctx, req.UserID, req.TemplateID); err == nil {
			params = saved
		}
	}
	if params == nil {
		params = map[string]float64{}
	}

	adj := h.d.Visualiser.Adjust(ctx, req.TemplateID, params, req.Instruction)
	if h.d.States != nil && req.UserID != "" && !adj.Degraded {
		if err := h.d.States.Save(ctx, req.UserID, req.TemplateID, adj.Parameters); err != nil {
			log.WithField("request_id", RequestID(ctx)).WithError(err).Warn("visualiser: state save failed")
		}
	}
	writeJSON(w, http.StatusOK, adj)
}

type chatReq struct {
	Topic      string             `json:"topic"`
	Parameters map[string]float64 `json:"parameters"`
	Message    string             `json:"message"`
	History    []llm.Message      `json:"history"`
}

func (h *Handle) VisualiserChat(w http.ResponseWriter, r *http.Request) {
	var req chatReq
	if !decodePOST(w, r, &req) {
		return
	}
	ctx, cancel := requestContext(r, defaultDeadline)
	defer cancel()
	writeJSON(w, http.StatusOK, h.d.Chat.Reply(ctx, req.Topic, req.Parameters, req.Message, req.History))
}

type imageReq struct {
	Prompt string `json:"prompt"`
}

func (h *Handle) GenerateImage(w http.ResponseWriter, r *http.Request) {
	var req imageReq
	if !decodePOST(w, r, &req) {
		return
	}
	if strings.TrimSpace(req.Prompt) == "" {
		writeError(w, http.StatusBadRequest, "prompt is required")
		return
	}
	if h.d.Images == nil {
		writeError(w, http.StatusServiceUnavailable, imagegen.ErrNotConfigured.Error())
		return
	}
	ctx, cancel := requestContext(r, defaultDeadline)
	defer cancel()

	u, err := h.d.Images.Generate(ctx, req.Prompt)
	switch {
	case errors.Is(err, imagegen.ErrNotConfigured):
		writeError(w, http.StatusServiceUnavailable, err.Error())
	case err != nil:
		log.WithField("request_id", RequestID(ctx)).WithError(err).Warn("image generation failed")
		writeError(w, http.StatusBadGateway, "image error: "+err.Error())
	default:
		writeJSON(w, http.StatusOK, map[string]string{"url": u})
	}
}
