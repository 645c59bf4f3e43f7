package tutor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tidwall/sjson"

	"stemly-gateway/api/internal/fallback"
	"stemly-gateway/api/internal/llm"
	"stemly-gateway/api/internal/llm/gemini"
)

const testKey = "AIzaTestPrimaryKey"

// fakeGemini answers generateContent calls with reply(n) where n counts
// calls from 1.
type fakeGemini struct {
	*httptest.Server
	calls atomic.Int32
}

func newFakeGemini(t *testing.T, reply func(n int) (int, string)) *fakeGemini {
	t.Helper()
	f := &fakeGemini{}
	f.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := int(f.calls.Add(1))
		status, text := reply(n)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		if status != http.StatusOK {
			_, _ = w.Write([]byte(`{"error":{"message":"upstream failure"}}`))
			return
		}
		body, _ := sjson.SetBytes([]byte(`{}`), "candidates.0.content.parts.0.text", text)
		_, _ = w.Write(body)
	}))
	t.Cleanup(f.Close)
	return f
}

func alwaysText(text string) func(int) (int, string) {
	return func(int) (int, string) { return http.StatusOK, text }
}

func alwaysStatus(status int) func(int) (int, string) {
	return func(int) (int, string) { return status, "" }
}

func testPolicy() llm.Policy {
	return llm.Policy{MaxRetries: 2}
}

func geminiGateway(srv *httptest.Server, key string) *Gateway {
	exec := llm.NewExecutor(llm.NewHTTPCaller(gemini.New(srv.URL, ""), srv.Client()), testPolicy())
	return NewGateway(exec, llm.CredentialSet{Primary: key})
}

func testBank(t *testing.T) *fallback.Bank {
	t.Helper()
	b, err := fallback.Default()
	require.NoError(t, err)
	return b
}

// labelCaller fails with outcome for every credential except the system one.
type labelCaller struct {
	outcome llm.Outcome
	reply   string
	labels  []string
}

func (c *labelCaller) Name() string                  { return "label" }
func (c *labelCaller) ValidCredential(k string) bool { return k != "" }

func (c *labelCaller) Call(_ context.Context, _ llm.Request, cred llm.Credential) llm.Attempt {
	c.labels = append(c.labels, cred.Label)
	if cred.Label == llm.LabelSystem {
		return llm.Attempt{Outcome: llm.OutcomeSuccess, Status: 200, Text: c.reply}
	}
	return llm.Attempt{Outcome: c.outcome, Err: context.DeadlineExceeded}
}
