package llm

import (
	"errors"
	"fmt"
)

// Kind classifies gateway failures.
type Kind string

const (
	KindCredentialMissing Kind = "credential_missing"
	KindRateLimited       Kind = "rate_limited"
	KindAuth              Kind = "auth"
	KindNetwork           Kind = "network"
	KindDecode            Kind = "decode"
	KindSchema            Kind = "schema"
	// KindAdapter marks a fault raised inside the adapter layer itself
	// (request build failure, SDK client failure, recovered panic).
	KindAdapter Kind = "adapter"
)

// Error is the single error type returned by the gateway.
type Error struct {
	Kind     Kind
	Op       string
	Attempts int
	Err      error
}

func (e *Error) Error() string {
	msg := string(e.Kind)
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Attempts > 0 {
		msg = fmt.Sprintf("%s after %d attempt(s)", msg, e.Attempts)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, ErrRateLimited)
// works regardless of Op and Attempts.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrCredentialMissing = &Error{Kind: KindCredentialMissing}
	ErrRateLimited       = &Error{Kind: KindRateLimited}
	ErrAuth              = &Error{Kind: KindAuth}
	ErrNetwork           = &Error{Kind: KindNetwork}
	ErrDecode            = &Error{Kind: KindDecode}
	ErrSchema            = &Error{Kind: KindSchema}
	ErrAdapter           = &Error{Kind: KindAdapter}

	errEmptyText = errors.New("backend returned no extractable text")
)

// KindOf returns the Kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
