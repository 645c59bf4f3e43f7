// Package openrouter adapts OpenAI-compatible chat completion endpoints,
// OpenRouter by default.
package openrouter

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"stemly-gateway/api/internal/llm"
	"stemly-gateway/api/internal/util"
)

const (
	DefaultBaseURL   = "https://openrouter.ai/api/v1"
	DefaultModel     = "google/gemini-2.0-flash-001"
	DefaultKeyPrefix = "sk-or-"
)

type Adapter struct {
	BaseURL string
	Model   string
	// KeyPrefix, when set, is required on every credential.
	KeyPrefix string
	Referer   string
	Title     string
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
	return &Adapter{BaseURL: baseURL, Model: model, KeyPrefix: DefaultKeyPrefix}
}

func (a *Adapter) Name() string { return "openrouter" }

func (a *Adapter) ValidCredential(k string) bool {
	k = strings.TrimSpace(k)
	if k == "" {
		return false
	}
	return a.KeyPrefix == "" || strings.HasPrefix(k, a.KeyPrefix)
}

func (a *Adapter) Build(ctx context.Context, req llm.Request, cred llm.Credential) (*http.Request, error) {
	body, err := a.buildBody(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.BaseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+cred.Key)
	if a.Referer != "" {
		httpReq.Header.Set("HTTP-Referer", a.Referer)
	}
	if a.Title != "" {
		httpReq.Header.Set("X-Title", a.Title)
	}
	return httpReq, nil
}

func (a *Adapter) buildBody(req llm.Request) ([]byte, error) {
	model := req.Model
	if model == "" {
		model = a.Model
	}
	body := []byte(`{"messages":[]}`)
	var err error
	set := func(path string, v any) {
		if err != nil {
			return
		}
		body, err = sjson.SetBytes(body, path, v)
	}

	set("model", model)
	if s := strings.TrimSpace(req.System); s != "" {
		set("messages.-1", map[string]any{"role": "system", "content": s})
	}
	for _, m := range req.History {
		role := m.Role
		if role != "assistant" && role != "system" {
			role = "user"
		}
		set("messages.-1", map[string]any{"role": role, "content": m.Content})
	}
	if req.HasImage() {
		mime := req.Image.MIME
		if mime == "" {
			mime = "image/jpeg"
		}
		set("messages.-1", map[string]any{
			"role": "user",
			"content": []map[string]any{
				{"type": "text", "text": req.Prompt},
				{"type": "image_url", "image_url": map[string]any{
					"url": util.MakeDataURL(mime, base64.StdEncoding.EncodeToString(req.Image.Data)),
				}},
			},
		})
	} else {
		set("messages.-1", map[string]any{"role": "user", "content": req.Prompt})
	}

	set("temperature", req.Temperature)
	if req.MaxOutputTokens > 0 {
		set("max_tokens", req.MaxOutputTokens)
	}
	if req.JSON {
		set("response_format.type", "json_object")
	}
	if err != nil {
		return nil, fmt.Errorf("openrouter: build body: %w", err)
	}
	return body, nil
}

// ExtractText reads choices[0].message.content; content may also arrive as
// a list of typed parts.
func (a *Adapter) ExtractText(body []byte) (string, bool) {
	c := gjson.GetBytes(body, "choices.0.message.content")
	if !c.Exists() {
		return "", false
	}
	var out string
	if c.IsArray() {
		var sb strings.Builder
		c.ForEach(func(_, p gjson.Result) bool {
			if t := p.Get("text"); t.Exists() {
				sb.WriteString(t.String())
			}
			return true
		})
		out = sb.String()
	} else {
		out = c.String()
	}
	if strings.TrimSpace(out) == "" {
		return "", false
	}
	return out, true
}
