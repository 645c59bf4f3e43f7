// Package ollama adapts a local Ollama /api/generate server.
package ollama

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
)

const (
	DefaultBaseURL = "http://localhost:11434"
	DefaultModel   = "llama3"
	// LocalKey is the placeholder credential for servers without auth.
	LocalKey = "local"
)

type Adapter struct {
	BaseURL string
	Model   string
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

func (a *Adapter) Name() string { return "ollama" }

func (a *Adapter) ValidCredential(k string) bool { return strings.TrimSpace(k) != "" }

func (a *Adapter) Build(ctx context.Context, req llm.Request, cred llm.Credential) (*http.Request, error) {
	model := req.Model
	if model == "" {
		model = a.Model
	}
	body := []byte(`{"stream":false}`)
	var err error
	set := func(path string, v any) {
		if err != nil {
			return
		}
		body, err = sjson.SetBytes(body, path, v)
	}
	set("model", model)
	set("prompt", flattenPrompt(req))
	if s := strings.TrimSpace(req.System); s != "" {
		set("system", s)
	}
	if req.JSON {
		set("format", "json")
	}
	if req.HasImage() {
		set("images", []string{base64.StdEncoding.EncodeToString(req.Image.Data)})
	}
	set("options.temperature", req.Temperature)
	if req.MaxOutputTokens > 0 {
		set("options.num_predict", req.MaxOutputTokens)
	}
	if err != nil {
		return nil, fmt.Errorf("ollama: build body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, a.BaseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if k := strings.TrimSpace(cred.Key); k != "" && k != LocalKey {
		httpReq.Header.Set("Authorization", "Bearer "+k)
	}
	return httpReq, nil
}

// flattenPrompt folds chat history into the single prompt /api/generate takes.
func flattenPrompt(req llm.Request) string {
	if len(req.History) == 0 {
		return req.Prompt
	}
	var sb strings.Builder
	for _, m := range req.History {
		role := "User"
		if m.Role == "assistant" || m.Role == "model" {
			role = "Assistant"
		}
		sb.WriteString(role + ": " + m.Content + "\n")
	}
	sb.WriteString("User: " + req.Prompt)
	return sb.String()
}

func (a *Adapter) ExtractText(body []byte) (string, bool) {
	r := gjson.GetBytes(body, "response")
	if !r.Exists() || strings.TrimSpace(r.String()) == "" {
		return "", false
	}
	return r.String(), true
}
