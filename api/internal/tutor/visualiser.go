package tutor

import (
	"context"
	"errors"
	"strings"

	log "github.com/sirupsen/logrus"

	"stemly-gateway/api/internal/llm"
	"stemly-gateway/api/internal/metrics"
)

// AdjustDegradedMessage is returned when no backend could interpret the
// instruction. Parameters are left unchanged.
const AdjustDegradedMessage = "AI Error. The assistant is unavailable right now, so the simulation was left unchanged."

type Adjustment struct {
	Delta      map[string]float64 `json:"delta"`
	Parameters map[string]float64 `json:"updated_parameters"`
	Message    string             `json:"ai_response"`
	Degraded   bool               `json:"degraded,omitempty"`
}

type Visualiser struct {
	gw *Gateway
}

func NewVisualiser(gw *Gateway) *Visualiser { return &Visualiser{gw: gw} }

// Adjust asks the model how instruction changes the simulation and merges
// the answer onto a copy of current. Keys absent from the delta keep their
// value; current itself is never modified. A reply carrying neither
// parameters nor a response degrades like a failed call.
func (v *Visualiser) Adjust(ctx context.Context, templateID string, current map[string]float64, instruction string) Adjustment {
	req := llm.Request{
		Modality:    llm.ModalityText,
		Prompt:      adjustPrompt(templateID, current, strings.TrimSpace(instruction)),
		Temperature: 0.2,
	}
	r := v.gw.GenerateStructured(ctx, req, adjustSchema)
	delta, _ := r.Value["updated_parameters"].(map[string]float64)
	msg, _ := r.Value["ai_response"].(string)
	if r.OK() && len(delta) == 0 && strings.TrimSpace(msg) == "" {
		r.Err = &llm.Error{Kind: llm.KindSchema, Op: adjustSchema.Name, Err: errors.New("reply has neither parameters nor a response")}
	}
	if !r.OK() {
		log.WithFields(log.Fields{
			"provider": v.gw.Name(),
			"template": templateID,
			"kind":     r.Kind(),
		}).WithError(r.Err).Warn("visualiser: adjustment degraded")
		metrics.IncFallback("visualiser")
		return Adjustment{
			Delta:      map[string]float64{},
			Parameters: MergeParameters(current, nil),
			Message:    AdjustDegradedMessage,
			Degraded:   true,
		}
	}

	if delta == nil {
		delta = map[string]float64{}
	}
	return Adjustment{
		Delta:      delta,
		Parameters: MergeParameters(current, delta),
		Message:    msg,
	}
}

// MergeParameters returns a new map holding current overlaid by delta.
func MergeParameters(current, delta map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(current)+len(delta))
	for k, val := range current {
		out[k] = val
	}
	for k, val := range delta {
		out[k] = val
	}
	return out
}
