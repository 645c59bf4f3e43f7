package tutor

import (
	"context"
	"strings"

	log "github.com/sirupsen/logrus"

	"stemly-gateway/api/internal/fallback"
	"stemly-gateway/api/internal/llm"
	"stemly-gateway/api/internal/metrics"
)

const (
	// NotesDegradedMessage is the explanation served when generation fails.
	NotesDegradedMessage = "AI notes are temporarily unavailable. Showing offline study notes for this topic instead; please try again shortly."
	// NotConfiguredMessage is served when no backend credential is set.
	NotConfiguredMessage = "AI is not configured. Set an API key for the selected backend to enable this feature."

	offlineVariableMeaning = "Not available offline"
)

type Notes struct {
	Topic             string            `json:"topic"`
	Explanation       string            `json:"explanation"`
	VariableBreakdown map[string]string `json:"variable_breakdown"`
	Formulas          []string          `json:"formulas"`
	Example           string            `json:"example"`
	Mistakes          []string          `json:"mistakes"`
	PracticeQuestions []string          `json:"practice_questions"`
	Summary           []string          `json:"summary"`
	Resources         []string          `json:"resources"`
	Fallback          bool              `json:"fallback,omitempty"`
	ErrorKind         string            `json:"error_kind,omitempty"`
}

type NotesService struct {
	gw   *Gateway
	bank *fallback.Bank
}

func NewNotesService(gw *Gateway, bank *fallback.Bank) *NotesService {
	return &NotesService{gw: gw, bank: bank}
}

// Engine names the backend answering for this service.
func (s *NotesService) Engine() string { return s.gw.Name() }

// Generate writes full study notes for topic.
func (s *NotesService) Generate(ctx context.Context, topic string, variables []string) Notes {
	topic = strings.TrimSpace(topic)
	req := llm.Request{
		Modality:        llm.ModalityText,
		System:          notesSystemPrompt,
		Prompt:          notesPrompt(topic, variables),
		Temperature:     0.4,
		MaxOutputTokens: 4000,
	}
	return s.run(ctx, req, topic, variables, "notes")
}

// FollowUp answers a question inside an existing notes session.
func (s *NotesService) FollowUp(ctx context.Context, topic string, previous map[string]any, question string) Notes {
	topic = strings.TrimSpace(topic)
	req := llm.Request{
		Modality:        llm.ModalityText,
		System:          notesSystemPrompt,
		Prompt:          notesFollowUpPrompt(topic, previous, strings.TrimSpace(question)),
		Temperature:     0.4,
		MaxOutputTokens: 4000,
	}
	return s.run(ctx, req, topic, nil, "notes_followup")
}

func (s *NotesService) run(ctx context.Context, req llm.Request, topic string, variables []string, feature string) Notes {
	r := s.gw.GenerateStructured(ctx, req, notesSchema)
	if r.OK() {
		var n Notes
		if err := decodeInto(r.Value, &n); err == nil {
			n.Topic = topic
			return n
		}
	}
	log.WithFields(log.Fields{
		"feature":  feature,
		"provider": s.gw.Name(),
		"topic":    topic,
		"kind":     r.Kind(),
	}).WithError(r.Err).Warn("notes: serving degraded notes")
	metrics.IncFallback(feature)
	return s.Degraded(topic, variables, r.Kind())
}

// Degraded builds the offline notes payload for topic.
func (s *NotesService) Degraded(topic string, variables []string, kind llm.Kind) Notes {
	msg := NotesDegradedMessage
	if kind == llm.KindCredentialMissing {
		msg = NotConfiguredMessage
	}
	breakdown := make(map[string]string, len(variables))
	for _, v := range variables {
		if v = strings.TrimSpace(v); v != "" {
			breakdown[v] = offlineVariableMeaning
		}
	}
	n := Notes{
		Topic:             topic,
		Explanation:       msg,
		VariableBreakdown: breakdown,
		Formulas:          []string{},
		Mistakes:          []string{},
		PracticeQuestions: []string{},
		Summary:           []string{},
		Resources:         []string{},
		Fallback:          true,
		ErrorKind:         string(kind),
	}
	if s.bank != nil {
		c := s.bank.Notes(topic)
		n.Formulas = c.Formulas
		n.Example = c.Example
		n.Mistakes = c.Mistakes
		n.PracticeQuestions = c.PracticeQuestions
		n.Summary = c.Summary
		n.Resources = c.Resources
	}
	return n
}
