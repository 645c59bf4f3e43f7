package llm

import (
	"context"
	"net/http"
)

// Adapter translates a Request into one backend's wire shape and pulls the
// generated text back out of its response envelope.
type Adapter interface {
	Name() string
	ValidCredential(key string) bool
	Build(ctx context.Context, req Request, cred Credential) (*http.Request, error)
	// ExtractText returns false when the envelope carries no text. That is a
	// normal outcome (safety block, empty candidate list), not an error.
	ExtractText(body []byte) (string, bool)
}

// Caller performs exactly one attempt. Executor drives retries on top of it.
type Caller interface {
	Name() string
	ValidCredential(key string) bool
	Call(ctx context.Context, req Request, cred Credential) Attempt
}

type Outcome int

const (
	OutcomeSuccess Outcome = iota
	OutcomeEmpty
	OutcomeRateLimited
	OutcomeAuthError
	OutcomeNetworkError
	OutcomeAdapterFault
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSuccess:
		return "success"
	case OutcomeEmpty:
		return "empty"
	case OutcomeRateLimited:
		return "rate_limited"
	case OutcomeAuthError:
		return "auth_error"
	case OutcomeNetworkError:
		return "network_error"
	case OutcomeAdapterFault:
		return "adapter_fault"
	default:
		return "unknown"
	}
}

// Attempt is the result of a single call.
type Attempt struct {
	Outcome    Outcome
	Credential Credential
	Status     int
	Text       string
	Err        error
}

// StatusOutcome maps an HTTP status to an outcome. 2xx maps to success; the
// caller still has to check for extractable text.
func StatusOutcome(status int) Outcome {
	switch {
	case status >= 200 && status < 300:
		return OutcomeSuccess
	case status == http.StatusTooManyRequests:
		return OutcomeRateLimited
	case status == http.StatusBadRequest, status == http.StatusUnauthorized, status == http.StatusForbidden:
		return OutcomeAuthError
	default:
		return OutcomeNetworkError
	}
}
