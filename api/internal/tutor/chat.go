package tutor

import (
	"context"
	"errors"
	"strings"
	"unicode/utf8"

	log "github.com/sirupsen/logrus"

	"stemly-gateway/api/internal/llm"
	"stemly-gateway/api/internal/metrics"
	"stemly-gateway/api/internal/schema"
)

const (
	ChatTypeChat   = "chat"
	ChatTypeUpdate = "update"

	chatHistoryWindow = 6

	chatPromptMessage   = "Please ask a question or give a command."
	chatDegradedMessage = "Sorry, I encountered an error. Please try again."
	chatTimeoutMessage  = "Request timed out. Please try again."
)

type ChatReply struct {
	Type       string             `json:"type"`
	Message    string             `json:"message,omitempty"`
	Changes    map[string]float64 `json:"changes,omitempty"`
	Parameters map[string]float64 `json:"parameters,omitempty"`
	Degraded   bool               `json:"degraded,omitempty"`
}

type Chat struct {
	gw *Gateway
}

func NewChat(gw *Gateway) *Chat { return &Chat{gw: gw} }

// Reply either explains in plain text or returns parameter changes when the
// model answers with {"action":"update","changes":{...}}. Changes are
// limited to keys already present in params.
func (c *Chat) Reply(ctx context.Context, topic string, params map[string]float64, message string, history []llm.Message) ChatReply {
	message = strings.TrimSpace(message)
	if utf8.RuneCountInString(message) < 2 {
		return ChatReply{Type: ChatTypeChat, Message: chatPromptMessage}
	}
	if len(history) > chatHistoryWindow {
		history = history[len(history)-chatHistoryWindow:]
	}
	req := llm.Request{
		Modality:        llm.ModalityText,
		System:          chatSystemPrompt,
		Prompt:          chatPrompt(topic, params, message),
		History:         history,
		Temperature:     0.3,
		MaxOutputTokens: 800,
	}
	raw, err := c.gw.Complete(ctx, req)
	if err != nil {
		log.WithFields(log.Fields{
			"provider": c.gw.Name(),
			"kind":     llm.KindOf(err),
		}).WithError(err).Warn("chat: degraded reply")
		metrics.IncFallback("chat")
		msg := chatDegradedMessage
		switch {
		case llm.KindOf(err) == llm.KindCredentialMissing:
			msg = NotConfiguredMessage
		case ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded):
			msg = chatTimeoutMessage
		}
		return ChatReply{Type: ChatTypeChat, Message: msg, Degraded: true}
	}

	raw = strings.TrimSpace(raw)
	if obj, ok := llm.DecodeObject(raw); ok && obj["action"] == "update" {
		if _, has := obj["changes"]; has {
			changes := knownOnly(schema.ToNumberMap(obj["changes"]), params)
			return ChatReply{
				Type:       ChatTypeUpdate,
				Changes:    changes,
				Parameters: MergeParameters(params, changes),
			}
		}
	}
	return ChatReply{Type: ChatTypeChat, Message: raw}
}

func knownOnly(changes, params map[string]float64) map[string]float64 {
	if len(params) == 0 {
		return changes
	}
	out := make(map[string]float64, len(changes))
	for k, v := range changes {
		if _, ok := params[k]; ok {
			out[k] = v
		}
	}
	return out
}
