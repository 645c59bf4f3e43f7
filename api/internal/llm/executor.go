package llm

import (
	"context"
	"time"

	log "github.com/sirupsen/logrus"

	"stemly-gateway/api/internal/metrics"
)

// Policy bounds one Execute call.
type Policy struct {
	MaxRetries    int
	TextTimeout   time.Duration
	VisionTimeout time.Duration
	// BackoffUnit is the unit of the 2^i+1 sleep after a 429 with no
	// alternate credential left.
	BackoffUnit time.Duration
}

// SleepFunc waits for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Executor runs a Request through a Caller with credential rotation and
// bounded retries. It holds no per-call state and is safe for concurrent use.
type Executor struct {
	caller Caller
	policy Policy
	sleep  SleepFunc
}

func NewExecutor(caller Caller, p Policy) *Executor {
	if p.MaxRetries < 0 {
		p.MaxRetries = 0
	}
	return &Executor{caller: caller, policy: p, sleep: sleepCtx}
}

// WithSleep replaces the backoff sleep, mainly for tests.
func (e *Executor) WithSleep(fn SleepFunc) *Executor {
	if fn != nil {
		e.sleep = fn
	}
	return e
}

func (e *Executor) Caller() Caller { return e.caller }

// Resolve filters a CredentialSet through the caller's key validation.
func (e *Executor) Resolve(set CredentialSet) []Credential {
	return set.Resolve(e.caller.ValidCredential)
}

func (e *Executor) timeout(req Request) time.Duration {
	if req.IsVision() {
		return e.policy.VisionTimeout
	}
	return e.policy.TextTimeout
}

func (e *Executor) backoff(i int) time.Duration {
	return time.Duration((1<<uint(i))+1) * e.policy.BackoffUnit
}

// Execute returns the first extractable text. Credentials are consumed in
// order and never revisited, so each one is tried at most once per
// rejection class.
func (e *Executor) Execute(ctx context.Context, req Request, creds []Credential) (string, error) {
	op := e.caller.Name()
	if len(creds) == 0 {
		return "", &Error{Kind: KindCredentialMissing, Op: op}
	}

	var (
		cur         int
		lastKind    Kind
		lastErr     error
		only429     = true
		maxAttempts = e.policy.MaxRetries + 1
	)
	for i := 0; i < maxAttempts; i++ {
		if err := ctx.Err(); err != nil {
			return "", &Error{Kind: KindNetwork, Op: op, Attempts: i, Err: err}
		}
		cred := creds[cur]
		att := e.attempt(ctx, req, cred)

		fields := log.Fields{
			"provider":   op,
			"attempt":    i + 1,
			"of":         maxAttempts,
			"credential": att.Credential.String(),
			"outcome":    att.Outcome.String(),
		}
		if att.Status != 0 {
			fields["status"] = att.Status
		}

		switch att.Outcome {
		case OutcomeSuccess:
			log.WithFields(fields).Debug("inference attempt succeeded")
			return att.Text, nil

		case OutcomeRateLimited:
			lastErr = att.Err
			if cur+1 < len(creds) {
				cur++
				metrics.IncRotation(op, "rate_limited")
				log.WithFields(fields).Warnf("rate limited, switching to %s credential", creds[cur].Label)
				continue
			}
			if i+1 < maxAttempts {
				d := e.backoff(i)
				log.WithFields(fields).Warnf("rate limited, retry in %v", d)
				if err := e.sleep(ctx, d); err != nil {
					return "", &Error{Kind: KindNetwork, Op: op, Attempts: i + 1, Err: err}
				}
			}

		case OutcomeAuthError:
			only429 = false
			lastKind, lastErr = KindAuth, att.Err
			if cur+1 < len(creds) {
				cur++
				metrics.IncRotation(op, "auth")
				log.WithFields(fields).Warnf("credential rejected, switching to %s credential", creds[cur].Label)
				continue
			}
			log.WithFields(fields).Error("all credentials rejected")
			return "", &Error{Kind: KindAuth, Op: op, Attempts: i + 1, Err: att.Err}

		case OutcomeAdapterFault:
			only429 = false
			lastKind, lastErr = KindAdapter, att.Err
			log.WithFields(fields).WithError(att.Err).Error("adapter fault")

		case OutcomeEmpty:
			only429 = false
			lastKind, lastErr = KindDecode, att.Err
			log.WithFields(fields).Warn("no extractable text in response")

		default:
			only429 = false
			lastKind, lastErr = KindNetwork, att.Err
			log.WithFields(fields).WithError(att.Err).Warn("inference attempt failed")
		}
	}

	kind := lastKind
	if only429 {
		kind = KindRateLimited
	}
	return "", &Error{Kind: kind, Op: op, Attempts: maxAttempts, Err: lastErr}
}

func (e *Executor) attempt(ctx context.Context, req Request, cred Credential) Attempt {
	actx := ctx
	if d := e.timeout(req); d > 0 {
		var cancel context.CancelFunc
		actx, cancel = context.WithTimeout(ctx, d)
		defer cancel()
	}
	start := time.Now()
	att := e.caller.Call(actx, req, cred)
	att.Credential = cred
	metrics.ObserveAttempt(e.caller.Name(), att.Outcome.String(), time.Since(start))
	return att
}
