// Package gemini adapts the Gemini generateContent API, over plain REST and
// through the official Go SDK.
package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"stemly-gateway/api/internal/llm"
)

const (
	DefaultBaseURL = "https://generativelanguage.googleapis.com"
	DefaultModel   = "gemini-2.0-flash"
)

// ValidKey reports whether k looks like a Google AI Studio key.
func ValidKey(k string) bool { return strings.HasPrefix(strings.TrimSpace(k), "AIza") }

// Adapter speaks the REST envelope; the key travels in the query string.
type Adapter struct {
	BaseURL string
	Model   string
	Referer string
	Title   string
}

func New(baseURL, model string) *Adapter {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	model = strings.TrimSpace(model)
	if model == "" {
		model = DefaultModel
	}
	return &Adapter{BaseURL: baseURL, Model: model}
}

func (a *Adapter) Name() string { return "gemini" }

func (a *Adapter) ValidCredential(k string) bool { return ValidKey(k) }

func (a *Adapter) Build(ctx context.Context, req llm.Request, cred llm.Credential) (*http.Request, error) {
	model := req.Model
	if model == "" {
		model = a.Model
	}
	body, err := buildBody(req)
	if err != nil {
		return nil, err
	}
	u := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s",
		a.BaseURL, url.PathEscape(model), url.QueryEscape(cred.Key))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if a.Referer != "" {
		httpReq.Header.Set("HTTP-Referer", a.Referer)
	}
	if a.Title != "" {
		httpReq.Header.Set("X-Title", a.Title)
	}
	return httpReq, nil
}

func buildBody(req llm.Request) ([]byte, error) {
	body := []byte(`{"contents":[]}`)
	var err error
	set := func(path string, v any) {
		if err != nil {
			return
		}
		body, err = sjson.SetBytes(body, path, v)
	}

	if s := strings.TrimSpace(req.System); s != "" {
		set("systemInstruction.parts.0.text", s)
	}
	for _, m := range req.History {
		role := "user"
		if m.Role == "assistant" || m.Role == "model" {
			role = "model"
		}
		set("contents.-1", map[string]any{
			"role":  role,
			"parts": []map[string]any{{"text": m.Content}},
		})
	}

	parts := []map[string]any{{"text": req.Prompt}}
	if req.HasImage() {
		mime := req.Image.MIME
		if mime == "" {
			mime = "image/jpeg"
		}
		parts = append(parts, map[string]any{
			"inline_data": map[string]any{
				"mime_type": mime,
				"data":      base64.StdEncoding.EncodeToString(req.Image.Data),
			},
		})
	}
	set("contents.-1", map[string]any{"role": "user", "parts": parts})

	set("generationConfig.temperature", req.Temperature)
	if req.MaxOutputTokens > 0 {
		set("generationConfig.maxOutputTokens", req.MaxOutputTokens)
	}
	if req.JSON {
		set("generationConfig.responseMimeType", "application/json")
	}
	if err != nil {
		return nil, fmt.Errorf("gemini: build body: %w", err)
	}
	return body, nil
}

// ExtractText joins the text parts of the first candidate that has any.
func (a *Adapter) ExtractText(body []byte) (string, bool) {
	var out string
	gjson.GetBytes(body, "candidates").ForEach(func(_, c gjson.Result) bool {
		var sb strings.Builder
		c.Get("content.parts").ForEach(func(_, p gjson.Result) bool {
			if t := p.Get("text"); t.Exists() {
				sb.WriteString(t.String())
			}
			return true
		})
		out = sb.String()
		return strings.TrimSpace(out) == ""
	})
	if strings.TrimSpace(out) == "" {
		return "", false
	}
	return out, true
}
