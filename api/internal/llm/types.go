// Package llm is the resilient inference gateway: provider adapters, the
// credential-rotating executor and the tolerant JSON decoder.
package llm

import (
	"strings"
)

type Modality string

const (
	ModalityText   Modality = "text"
	ModalityVision Modality = "vision"
)

// Image is an inline image payload sent with vision requests.
type Image struct {
	Data []byte
	MIME string
}

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is built once per call and never mutated afterwards.
type Request struct {
	Modality        Modality
	Model           string
	System          string
	Prompt          string
	History         []Message
	Image           *Image
	Temperature     float32
	MaxOutputTokens int
	// JSON asks the backend for a strict JSON response body.
	JSON bool
}

func (r Request) HasImage() bool { return r.Image != nil && len(r.Image.Data) > 0 }

// IsVision reports whether the request should run under the vision timeout.
func (r Request) IsVision() bool { return r.Modality == ModalityVision || r.HasImage() }

// Credential is one API key plus a label that is safe to log.
type Credential struct {
	Label string
	Key   string
}

func (c Credential) String() string { return c.Label + "(" + MaskKey(c.Key) + ")" }

// MaskKey keeps the first four and last four characters of a key.
func MaskKey(k string) string {
	k = strings.TrimSpace(k)
	if len(k) <= 8 {
		return strings.Repeat("*", len(k))
	}
	return k[:4] + "..." + k[len(k)-4:]
}
