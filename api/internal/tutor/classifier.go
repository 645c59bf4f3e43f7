package tutor

import (
	"context"
	"strings"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"

	"stemly-gateway/api/internal/llm"
)

const (
	TopicUnknown = "Unknown"

	SourceText    = "text"
	SourceVision  = "vision"
	SourceKeyword = "keyword"

	minClassifyText = 10
)

// genericTopics are answers too vague to stop the cascade after the text
// stage.
var genericTopics = map[string]struct{}{
	"general science": {},
	"general":         {},
	"science":         {},
}

type Classification struct {
	Topic     string   `json:"topic"`
	Variables []string `json:"variables"`
	Source    string   `json:"source"`
}

// Classifier cascades keyword table, text inference and vision inference.
type Classifier struct {
	text      *Gateway
	vision    *Gateway
	systemKey string
	rules     []KeywordRule
}

// NewClassifier wires the two stages. systemKey is retried once per stage
// when the adapter layer itself faults; it may be empty.
func NewClassifier(text, vision *Gateway, systemKey string) *Classifier {
	return &Classifier{text: text, vision: vision, systemKey: systemKey, rules: KeywordRules}
}

// Classify never fails; the worst answer is Unknown with no variables.
func (c *Classifier) Classify(ctx context.Context, text string, img *llm.Image) Classification {
	text = strings.TrimSpace(text)
	guess := KeywordGuess(c.rules, text)

	if c.text != nil && utf8.RuneCountInString(text) >= minClassifyText {
		req := llm.Request{
			Modality:    llm.ModalityText,
			System:      topicSystemPrompt,
			Prompt:      topicTextPrompt(text),
			Temperature: 0,
		}
		if res, ok := c.infer(ctx, c.text, req); ok && !isUnknown(res.Topic) && !isGeneric(res.Topic) {
			res.Source = SourceText
			return res
		}
	}

	if c.vision != nil && img != nil && len(img.Data) > 0 {
		req := llm.Request{
			Modality:    llm.ModalityVision,
			System:      topicSystemPrompt,
			Prompt:      topicVisionPrompt(text),
			Image:       img,
			Temperature: 0,
		}
		if res, ok := c.infer(ctx, c.vision, req); ok && !isUnknown(res.Topic) {
			res.Source = SourceVision
			return res
		}
	}

	return guess
}

func (c *Classifier) infer(ctx context.Context, gw *Gateway, req llm.Request) (Classification, bool) {
	r := gw.GenerateStructured(ctx, req, topicSchema)
	if r.Kind() == llm.KindAdapter {
		if creds := gw.Credentials(c.systemKey); len(creds) > 0 {
			log.WithFields(log.Fields{
				"provider": gw.Name(),
				"modality": req.Modality,
			}).WithError(r.Err).Warn("classifier: adapter fault, retrying with system credential")
			r = gw.GenerateStructuredWith(ctx, req, topicSchema, creds)
		}
	}
	if !r.OK() {
		log.WithFields(log.Fields{
			"provider": gw.Name(),
			"modality": req.Modality,
			"kind":     r.Kind(),
		}).WithError(r.Err).Info("classifier: stage gave no answer")
		return Classification{}, false
	}
	var out Classification
	if err := decodeInto(r.Value, &out); err != nil {
		return Classification{}, false
	}
	if out.Variables == nil {
		out.Variables = []string{}
	}
	return out, true
}

func isUnknown(topic string) bool {
	t := strings.TrimSpace(topic)
	return t == "" || strings.EqualFold(t, TopicUnknown)
}

func isGeneric(topic string) bool {
	_, ok := genericTopics[strings.ToLower(strings.TrimSpace(topic))]
	return ok
}
