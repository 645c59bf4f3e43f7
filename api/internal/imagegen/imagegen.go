// Package imagegen calls an OpenAI-compatible image generation endpoint
// (AIML flux models by default) to draw educational diagrams.
package imagegen

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

var ErrNotConfigured = errors.New("imagegen: AIML_API_KEY is empty")

type Client struct {
	APIKey  string
	BaseURL string
	Model   string
	Size    string
	httpc   *http.Client
}

func New(apiKey, baseURL, model string) *Client {
	return &Client{
		APIKey:  strings.TrimSpace(apiKey),
		BaseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		Model:   strings.TrimSpace(model),
		Size:    "512x512",
		httpc:   &http.Client{Timeout: 30 * time.Second},
	}
}

// WithHTTPClient overrides the internal HTTP client.
func (c *Client) WithHTTPClient(h *http.Client) *Client {
	if h != nil {
		c.httpc = h
	}
	return c
}

// Generate returns the URL of one generated diagram.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if c.APIKey == "" {
		return "", ErrNotConfigured
	}
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return "", errors.New("imagegen: empty prompt")
	}

	body := []byte(`{"n":1}`)
	var err error
	for _, kv := range []struct {
		path string
		val  any
	}{
		{"model", c.Model},
		{"prompt", "Educational Diagram: " + prompt},
		{"size", c.Size},
	} {
		if body, err = sjson.SetBytes(body, kv.path, kv.val); err != nil {
			return "", fmt.Errorf("imagegen: build body: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/images/generations/", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("imagegen: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("imagegen: read body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("imagegen: status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	u := gjson.GetBytes(raw, "data.0.url").String()
	if u == "" {
		return "", errors.New("imagegen: response has no image url")
	}
	return u, nil
}
