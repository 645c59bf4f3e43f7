package tutor

import (
	"context"
	"strings"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"

	"stemly-gateway/api/internal/fallback"
	"stemly-gateway/api/internal/llm"
	"stemly-gateway/api/internal/metrics"
)

const (
	defaultQuizSize = 5
	maxQuizSize     = 20
)

type QuizService struct {
	gw   *Gateway
	bank *fallback.Bank
}

func NewQuizService(gw *Gateway, bank *fallback.Bank) *QuizService {
	return &QuizService{gw: gw, bank: bank}
}

// Generate returns n multiple-choice questions on topic. n outside 1..20
// becomes 5. On any gateway failure the fallback bank answers instead.
func (s *QuizService) Generate(ctx context.Context, topic string, n int) fallback.Quiz {
	topic = strings.TrimSpace(topic)
	if utf8.RuneCountInString(topic) < 2 {
		return fallback.Quiz{Error: "Invalid topic", Questions: []fallback.Question{}}
	}
	if n < 1 || n > maxQuizSize {
		n = defaultQuizSize
	}

	req := llm.Request{
		Modality:        llm.ModalityText,
		System:          quizSystemPrompt,
		Prompt:          quizPrompt(topic, n),
		Temperature:     0.5,
		MaxOutputTokens: 4000,
	}
	r := s.gw.GenerateStructured(ctx, req, quizSchema)
	if r.OK() {
		var q fallback.Quiz
		if err := decodeInto(r.Value, &q); err == nil && len(q.Questions) > 0 {
			if len(q.Questions) > n {
				q.Questions = q.Questions[:n]
			}
			q.Topic = topic
			if q.Difficulty == "" {
				q.Difficulty = "mixed"
			}
			return q
		}
	}

	log.WithFields(log.Fields{
		"provider": s.gw.Name(),
		"topic":    topic,
		"kind":     r.Kind(),
	}).WithError(r.Err).Warn("quiz: serving fallback quiz")
	metrics.IncFallback("quiz")
	return s.bank.Quiz(topic, n)
}
