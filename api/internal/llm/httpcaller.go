package llm

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

const maxResponseBody = 8 << 20

// NewHTTPClient returns the shared client used by all REST adapters. The
// client has no overall timeout; each attempt is bounded by its context.
func NewHTTPClient() *http.Client {
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 120 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   100,
	}
	return &http.Client{Timeout: 0, Transport: tr}
}

// HTTPCaller runs one attempt through an Adapter over plain HTTP.
type HTTPCaller struct {
	Adapter Adapter
	Client  *http.Client
}

func NewHTTPCaller(a Adapter, c *http.Client) *HTTPCaller {
	if c == nil {
		c = NewHTTPClient()
	}
	return &HTTPCaller{Adapter: a, Client: c}
}

func (c *HTTPCaller) Name() string { return c.Adapter.Name() }

func (c *HTTPCaller) ValidCredential(key string) bool { return c.Adapter.ValidCredential(key) }

func (c *HTTPCaller) Call(ctx context.Context, req Request, cred Credential) (att Attempt) {
	defer func() {
		if r := recover(); r != nil {
			att = Attempt{Outcome: OutcomeAdapterFault, Err: fmt.Errorf("%s: panic: %v", c.Adapter.Name(), r)}
		}
	}()

	httpReq, err := c.Adapter.Build(ctx, req, cred)
	if err != nil {
		return Attempt{Outcome: OutcomeAdapterFault, Err: fmt.Errorf("%s: build request: %w", c.Adapter.Name(), err)}
	}
	resp, err := c.Client.Do(httpReq)
	if err != nil {
		return Attempt{Outcome: OutcomeNetworkError, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return Attempt{Outcome: OutcomeNetworkError, Status: resp.StatusCode, Err: err}
	}
	out := StatusOutcome(resp.StatusCode)
	if out != OutcomeSuccess {
		return Attempt{
			Outcome: out,
			Status:  resp.StatusCode,
			Err:     fmt.Errorf("%s: status %d: %s", c.Adapter.Name(), resp.StatusCode, snippet(body)),
		}
	}
	text, ok := c.Adapter.ExtractText(body)
	if !ok || strings.TrimSpace(text) == "" {
		return Attempt{Outcome: OutcomeEmpty, Status: resp.StatusCode, Err: errEmptyText}
	}
	return Attempt{Outcome: OutcomeSuccess, Status: resp.StatusCode, Text: text}
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 300 {
		s = s[:300] + "..."
	}
	return s
}
