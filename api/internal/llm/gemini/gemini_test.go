package gemini

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"google.golang.org/api/googleapi"

	"stemly-gateway/api/internal/llm"
)

func TestAdapter_Build(t *testing.T) {
	a := New("https://example.test/", "")
	a.Referer, a.Title = "http://localhost:3000", "Stemly"

	req := llm.Request{
		System:          "be brief",
		Prompt:          "what is this?",
		History:         []llm.Message{{Role: "user", Content: "hi"}, {Role: "assistant", Content: "hello"}},
		Image:           &llm.Image{Data: []byte{0xFF, 0xD8, 0x01}, MIME: "image/jpeg"},
		Temperature:     0.5,
		MaxOutputTokens: 256,
		JSON:            true,
	}
	r, err := a.Build(context.Background(), req, llm.Credential{Label: llm.LabelPrimary, Key: "AIza-key"})
	require.NoError(t, err)

	assert.Equal(t, http.MethodPost, r.Method)
	assert.Equal(t, "https://example.test/v1beta/models/gemini-2.0-flash:generateContent?key=AIza-key", r.URL.String())
	assert.Equal(t, "http://localhost:3000", r.Header.Get("HTTP-Referer"))
	assert.Equal(t, "Stemly", r.Header.Get("X-Title"))

	body, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	j := gjson.ParseBytes(body)
	assert.Equal(t, "be brief", j.Get("systemInstruction.parts.0.text").String())
	assert.Equal(t, int64(3), j.Get("contents.#").Int())
	assert.Equal(t, "model", j.Get("contents.1.role").String())
	assert.Equal(t, "what is this?", j.Get("contents.2.parts.0.text").String())
	assert.Equal(t, "image/jpeg", j.Get("contents.2.parts.1.inline_data.mime_type").String())
	assert.Equal(t, "/9gB", j.Get("contents.2.parts.1.inline_data.data").String())
	assert.InDelta(t, 0.5, j.Get("generationConfig.temperature").Float(), 1e-6)
	assert.Equal(t, int64(256), j.Get("generationConfig.maxOutputTokens").Int())
	assert.Equal(t, "application/json", j.Get("generationConfig.responseMimeType").String())
}

func TestAdapter_ExtractText(t *testing.T) {
	a := New("", "")
	cases := []struct {
		name string
		body string
		want string
		ok   bool
	}{
		{"parts joined", `{"candidates":[{"content":{"parts":[{"text":"a"},{"text":"b"}]}}]}`, "ab", true},
		{"skips empty candidate", `{"candidates":[{"finishReason":"SAFETY"},{"content":{"parts":[{"text":"x"}]}}]}`, "x", true},
		{"safety blocked", `{"candidates":[{"finishReason":"SAFETY"}]}`, "", false},
		{"no candidates", `{"promptFeedback":{"blockReason":"OTHER"}}`, "", false},
		{"garbage", `not json`, "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := a.ExtractText([]byte(tc.body))
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestValidKey(t *testing.T) {
	assert.True(t, ValidKey("AIzaSyExample"))
	assert.True(t, New("", "").ValidCredential(" AIzaSyExample "))
	assert.False(t, ValidKey("sk-or-v1-abc"))
	assert.False(t, ValidKey(""))
}

func TestAttemptFromError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want llm.Outcome
	}{
		{"googleapi 429", &googleapi.Error{Code: 429}, llm.OutcomeRateLimited},
		{"googleapi 403", &googleapi.Error{Code: 403}, llm.OutcomeAuthError},
		{"googleapi 500", &googleapi.Error{Code: 500}, llm.OutcomeNetworkError},
		{"blocked", &genai.BlockedError{}, llm.OutcomeEmpty},
		{"exhausted text", errors.New("rpc error: code = ResourceExhausted desc = RESOURCE_EXHAUSTED"), llm.OutcomeRateLimited},
		{"bad key text", errors.New("API key not valid. Please pass a valid API key."), llm.OutcomeAuthError},
		{"other", errors.New("connection reset"), llm.OutcomeNetworkError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, attemptFromError(tc.err).Outcome)
		})
	}
}
