package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"stemly-gateway/api/internal/llm"
)

// SDKCaller runs one attempt through the official Gemini client. A client is
// created per attempt because the key changes on rotation.
type SDKCaller struct {
	Model    string
	Endpoint string
}

func NewSDK(model, endpoint string) *SDKCaller {
	model = strings.TrimSpace(model)
	if model == "" {
		model = DefaultModel
	}
	return &SDKCaller{Model: model, Endpoint: strings.TrimSpace(endpoint)}
}

func (c *SDKCaller) Name() string { return "gemini-sdk" }

func (c *SDKCaller) ValidCredential(k string) bool { return ValidKey(k) }

func (c *SDKCaller) Call(ctx context.Context, req llm.Request, cred llm.Credential) (att llm.Attempt) {
	defer func() {
		if r := recover(); r != nil {
			att = llm.Attempt{Outcome: llm.OutcomeAdapterFault, Err: fmt.Errorf("gemini sdk: panic: %v", r)}
		}
	}()

	opts := []option.ClientOption{option.WithAPIKey(cred.Key)}
	if c.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.Endpoint))
	}
	cl, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return llm.Attempt{Outcome: llm.OutcomeAdapterFault, Err: fmt.Errorf("gemini sdk: new client: %w", err)}
	}
	defer cl.Close()

	model := req.Model
	if model == "" {
		model = c.Model
	}
	m := cl.GenerativeModel(model)
	if m == nil {
		return llm.Attempt{Outcome: llm.OutcomeAdapterFault, Err: errors.New("gemini sdk: model is nil")}
	}
	m.GenerationConfig = genai.GenerationConfig{
		Temperature: ptrFloat32(req.Temperature),
	}
	if req.MaxOutputTokens > 0 {
		m.GenerationConfig.MaxOutputTokens = ptrInt32(int32(req.MaxOutputTokens))
	}
	if req.JSON {
		m.GenerationConfig.ResponseMIMEType = "application/json"
	}
	if s := strings.TrimSpace(req.System); s != "" {
		m.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(s)}}
	}

	parts := []genai.Part{genai.Text(req.Prompt)}
	if req.HasImage() {
		mime := req.Image.MIME
		if mime == "" {
			mime = "image/jpeg"
		}
		parts = append(parts, &genai.Blob{MIMEType: mime, Data: req.Image.Data})
	}

	var resp *genai.GenerateContentResponse
	if len(req.History) > 0 {
		cs := m.StartChat()
		cs.History = historyContents(req.History)
		resp, err = cs.SendMessage(ctx, parts...)
	} else {
		resp, err = m.GenerateContent(ctx, parts...)
	}
	if err != nil {
		return attemptFromError(err)
	}
	txt := firstText(resp)
	if strings.TrimSpace(txt) == "" {
		return llm.Attempt{Outcome: llm.OutcomeEmpty, Status: http.StatusOK, Err: errors.New("gemini sdk: empty response")}
	}
	return llm.Attempt{Outcome: llm.OutcomeSuccess, Status: http.StatusOK, Text: txt}
}

func historyContents(msgs []llm.Message) []*genai.Content {
	out := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		role := "user"
		if m.Role == "assistant" || m.Role == "model" {
			role = "model"
		}
		out = append(out, &genai.Content{Role: role, Parts: []genai.Part{genai.Text(m.Content)}})
	}
	return out
}

// attemptFromError maps SDK errors onto the same outcomes the REST path
// derives from status codes.
func attemptFromError(err error) llm.Attempt {
	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return llm.Attempt{Outcome: llm.OutcomeEmpty, Status: http.StatusOK, Err: err}
	}
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		out := llm.StatusOutcome(gerr.Code)
		if out == llm.OutcomeSuccess {
			out = llm.OutcomeNetworkError
		}
		return llm.Attempt{Outcome: out, Status: gerr.Code, Err: err}
	}
	s := strings.ToLower(err.Error())
	switch {
	case strings.Contains(s, "resource_exhausted") || strings.Contains(s, "429"):
		return llm.Attempt{Outcome: llm.OutcomeRateLimited, Status: http.StatusTooManyRequests, Err: err}
	case strings.Contains(s, "api key not valid") || strings.Contains(s, "permission_denied"):
		return llm.Attempt{Outcome: llm.OutcomeAuthError, Status: http.StatusForbidden, Err: err}
	}
	return llm.Attempt{Outcome: llm.OutcomeNetworkError, Err: err}
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		var sb strings.Builder
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				sb.WriteString(string(t))
			}
		}
		if sb.Len() > 0 {
			return sb.String()
		}
	}
	return ""
}

func ptrFloat32(v float32) *float32 { return &v }

func ptrInt32(v int32) *int32 { return &v }
