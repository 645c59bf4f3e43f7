package tutor

import (
	"fmt"
	"net/http"

	"stemly-gateway/api/internal/config"
	"stemly-gateway/api/internal/llm"
	"stemly-gateway/api/internal/llm/gemini"
	"stemly-gateway/api/internal/llm/ollama"
	"stemly-gateway/api/internal/llm/openrouter"
)

// Engines holds one Gateway per configured backend.
type Engines struct {
	byName map[string]*Gateway
}

// NewEngines builds a gateway for every backend; which one a feature uses
// is decided by the config's *_BACKEND values.
func NewEngines(cfg *config.Config, client *http.Client) *Engines {
	if client == nil {
		client = llm.NewHTTPClient()
	}
	policy := llm.Policy{
		MaxRetries:    cfg.MaxRetries,
		TextTimeout:   cfg.TextTimeout,
		VisionTimeout: cfg.VisionTimeout,
		BackoffUnit:   cfg.BackoffUnit,
	}
	geminiKeys := llm.CredentialSet{Primary: cfg.GeminiAPIKey, Fallback: cfg.GeminiFallbackKey}

	ga := gemini.New(cfg.GeminiBaseURL, cfg.GeminiModel)
	ga.Referer, ga.Title = cfg.AppReferer, cfg.AppTitle

	oa := openrouter.New(cfg.OpenRouterBaseURL, cfg.OpenRouterModel)
	oa.Referer, oa.Title = cfg.AppReferer, cfg.AppTitle

	la := ollama.New(cfg.OllamaBaseURL, cfg.OllamaModel)

	return &Engines{byName: map[string]*Gateway{
		config.BackendGemini: NewGateway(
			llm.NewExecutor(llm.NewHTTPCaller(ga, client), policy), geminiKeys),
		config.BackendGeminiSDK: NewGateway(
			llm.NewExecutor(gemini.NewSDK(cfg.GeminiModel, ""), policy), geminiKeys),
		config.BackendOpenRouter: NewGateway(
			llm.NewExecutor(llm.NewHTTPCaller(oa, client), policy),
			llm.CredentialSet{Primary: cfg.OpenRouterAPIKey, Fallback: cfg.OpenRouterFallbackKey}),
		config.BackendOllama: NewGateway(
			llm.NewExecutor(llm.NewHTTPCaller(la, client), policy),
			llm.CredentialSet{Primary: cfg.OllamaAPIKey}),
	}}
}

func (e *Engines) GetEngine(name string) (*Gateway, error) {
	if g, ok := e.byName[name]; ok {
		return g, nil
	}
	return nil, fmt.Errorf("unknown backend: %s", name)
}
