// Package tutor holds the study features built on the inference gateway:
// topic classification, notes, quizzes, visualiser control and chat. Every
// feature method returns a well-formed payload; gateway failures turn into
// fallback content or a fixed degraded message.
package tutor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"stemly-gateway/api/internal/llm"
	"stemly-gateway/api/internal/schema"
)

// Gateway binds one executor to the credential set of its backend.
type Gateway struct {
	exec  *llm.Executor
	creds llm.CredentialSet
}

func NewGateway(exec *llm.Executor, creds llm.CredentialSet) *Gateway {
	return &Gateway{exec: exec, creds: creds}
}

func (g *Gateway) Name() string { return g.exec.Caller().Name() }

// Configured reports whether at least one usable credential exists.
func (g *Gateway) Configured() bool { return len(g.exec.Resolve(g.creds)) > 0 }

// Credentials validates keys against this backend, dropping unusable ones.
func (g *Gateway) Credentials(keys ...string) []llm.Credential {
	out := make([]llm.Credential, 0, len(keys))
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k != "" && g.exec.Caller().ValidCredential(k) {
			out = append(out, llm.Credential{Label: llm.LabelSystem, Key: k})
		}
	}
	return out
}

// Complete returns raw model text.
func (g *Gateway) Complete(ctx context.Context, req llm.Request) (string, error) {
	return g.exec.Execute(ctx, req, g.exec.Resolve(g.creds))
}

// Result is the typed outcome of GenerateStructured. Value always has every
// schema field, even when Err is set.
type Result struct {
	Value    map[string]any
	Missing  []string
	Strategy int
	Err      error
}

func (r Result) OK() bool { return r.Err == nil }

func (r Result) Kind() llm.Kind { return llm.KindOf(r.Err) }

// GenerateStructured runs req through the executor, decodes the reply and
// coerces it to s.
func (g *Gateway) GenerateStructured(ctx context.Context, req llm.Request, s schema.Schema) Result {
	return g.GenerateStructuredWith(ctx, req, s, g.exec.Resolve(g.creds))
}

// GenerateStructuredWith is GenerateStructured with explicit credentials.
func (g *Gateway) GenerateStructuredWith(ctx context.Context, req llm.Request, s schema.Schema, creds []llm.Credential) Result {
	req.JSON = true
	empty, _ := s.Coerce(nil)

	raw, err := g.exec.Execute(ctx, req, creds)
	if err != nil {
		return Result{Value: empty, Err: err}
	}
	d := llm.Decode(raw)
	if !d.OK() {
		return Result{Value: empty, Err: &llm.Error{Kind: llm.KindDecode, Op: s.Name, Err: fmt.Errorf("no JSON in %d bytes of output", len(raw))}}
	}
	obj, missing := s.Coerce(d.Value)
	if len(missing) > 0 {
		return Result{
			Value:    obj,
			Missing:  missing,
			Strategy: d.Strategy,
			Err:      &llm.Error{Kind: llm.KindSchema, Op: s.Name, Err: fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))},
		}
	}
	return Result{Value: obj, Strategy: d.Strategy}
}

// decodeInto copies a coerced object into a typed struct.
func decodeInto(obj map[string]any, out any) error {
	b, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}
