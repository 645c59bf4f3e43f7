package handle

import (
	"net/http"
)

type quizReq struct {
	Topic        string `json:"topic"`
	NumQuestions int    `json:"num_questions"`
}

func (h *Handle) GenerateQuiz(w http.ResponseWriter, r *http.Request) {
	var req quizReq
	if !decodePOST(w, r, &req) {
		return
	}
	ctx, cancel := requestContext(r, defaultDeadline)
	defer cancel()

	q := h.d.Quiz.Generate(ctx, req.Topic, req.NumQuestions)
	if q.Error != "" {
		writeJSON(w, http.StatusBadRequest, q)
		return
	}
	writeJSON(w, http.StatusOK, q)
}
