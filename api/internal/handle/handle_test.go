package handle

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/sjson"

	"stemly-gateway/api/internal/fallback"
	"stemly-gateway/api/internal/imagegen"
	"stemly-gateway/api/internal/llm"
	"stemly-gateway/api/internal/llm/gemini"
	"stemly-gateway/api/internal/store"
	"stemly-gateway/api/internal/tutor"
)

// upstream is a Gemini stand-in replying with a fixed text.
func upstream(t *testing.T, text string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		body, _ := sjson.SetBytes([]byte(`{}`), "candidates.0.content.parts.0.text", text)
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func gateway(srv *httptest.Server, key string) *tutor.Gateway {
	exec := llm.NewExecutor(llm.NewHTTPCaller(gemini.New(srv.URL, ""), srv.Client()), llm.Policy{MaxRetries: 1})
	return tutor.NewGateway(exec, llm.CredentialSet{Primary: key})
}

func services(t *testing.T, gw *tutor.Gateway) Deps {
	t.Helper()
	bank, err := fallback.Default()
	require.NoError(t, err)
	return Deps{
		Classifier: tutor.NewClassifier(gw, gw, ""),
		Notes:      tutor.NewNotesService(gw, bank),
		Quiz:       tutor.NewQuizService(gw, bank),
		Visualiser: tutor.NewVisualiser(gw),
		Chat:       tutor.NewChat(gw),
	}
}

// offline returns deps whose backend has no credential.
func offline(t *testing.T) Deps {
	return services(t, gateway(upstream(t, "{}"), ""))
}

func do(t *testing.T, h http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if s, ok := body.(string); ok {
		buf.WriteString(s)
	} else if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

type fakeScans struct {
	rows    []store.ScanRow
	cached  *store.ScanRow
	lookups int
}

func (f *fakeScans) Insert(_ context.Context, row store.ScanRow) (string, error) {
	row.ID = "scan-1"
	f.rows = append(f.rows, row)
	return row.ID, nil
}

func (f *fakeScans) FindByHash(_ context.Context, hash string, _ time.Duration) (*store.ScanRow, error) {
	f.lookups++
	if f.cached != nil && f.cached.ImageHash == hash {
		return f.cached, nil
	}
	return nil, store.ErrNotFound
}

func (f *fakeScans) ListByUser(_ context.Context, user string, _ int) ([]store.ScanRow, error) {
	out := []store.ScanRow{}
	for _, r := range f.rows {
		if r.UserID == user {
			out = append(out, r)
		}
	}
	return out, nil
}

type fakeNotesCache struct {
	stored map[string]any
	hit    *tutor.Notes
}

func (f *fakeNotesCache) Find(_ context.Context, _ string, _ []string, _ string, _ time.Duration, out any) error {
	if f.hit == nil {
		return sql.ErrNoRows
	}
	*(out.(*tutor.Notes)) = *f.hit
	return nil
}

func (f *fakeNotesCache) Upsert(_ context.Context, topic string, _ []string, _ string, notes any) error {
	if f.stored == nil {
		f.stored = map[string]any{}
	}
	f.stored[topic] = notes
	return nil
}

type fakeStates struct {
	saved map[string]map[string]float64
}

func (f *fakeStates) Get(_ context.Context, user, tpl string) (map[string]float64, error) {
	if p, ok := f.saved[user+"/"+tpl]; ok {
		return p, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeStates) Save(_ context.Context, user, tpl string, p map[string]float64) error {
	if f.saved == nil {
		f.saved = map[string]map[string]float64{}
	}
	f.saved[user+"/"+tpl] = p
	return nil
}

type fakeImages struct {
	url string
	err error
}

func (f fakeImages) Generate(context.Context, string) (string, error) { return f.url, f.err }

type fakePinger struct{ err error }

func (f fakePinger) PingContext(context.Context) error { return f.err }

func TestHealth(t *testing.T) {
	d := offline(t)
	rec := do(t, New(d).Handler(), http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody(t, rec)["status"])

	d.DB = fakePinger{err: errors.New("connection refused")}
	rec = do(t, New(d).Handler(), http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMiddleware_RequestID(t *testing.T) {
	h := New(offline(t)).Handler()

	rec := do(t, h, http.MethodGet, "/healthz", nil)
	assert.Len(t, rec.Header().Get(RequestIDHeader), 36)

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get(RequestIDHeader))
}

func TestMetricsEndpoint(t *testing.T) {
	h := New(offline(t)).Handler()
	_ = do(t, h, http.MethodGet, "/healthz", nil)
	rec := do(t, h, http.MethodGet, "/metrics", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "stemly_http_requests_total")
}

func TestClassify_Validation(t *testing.T) {
	h := New(offline(t)).Handler()

	assert.Equal(t, http.StatusMethodNotAllowed, do(t, h, http.MethodGet, "/v1/scan/classify", nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/v1/scan/classify", "{oops").Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/v1/scan/classify", map[string]string{}).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/v1/scan/classify", map[string]string{"image_b64": "%%%"}).Code)
}

func TestClassify_OfflineKeywordAndHistory(t *testing.T) {
	d := offline(t)
	scans := &fakeScans{}
	d.Scans = scans
	h := New(d).Handler()

	rec := do(t, h, http.MethodPost, "/v1/scan/classify", map[string]string{
		"text":    "cannon fires ball along parabola",
		"user_id": "u1",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "Projectile Motion", body["topic"])
	assert.Equal(t, []any{}, body["variables"])
	assert.Equal(t, "keyword", body["source"])
	assert.Equal(t, "scan-1", body["id"])

	require.Len(t, scans.rows, 1)
	assert.Equal(t, "u1", scans.rows[0].UserID)

	rec = do(t, h, http.MethodGet, "/v1/history?user_id=u1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody(t, rec)["scans"], 1)
}

func TestClassify_CachedImage(t *testing.T) {
	img := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x01}
	d := offline(t)
	d.Scans = &fakeScans{cached: &store.ScanRow{
		ID: "old", ImageHash: store.HashBytes(img), Topic: "Optics", Variables: []string{"f"}, Source: "vision",
	}}
	h := New(d).Handler()

	rec := do(t, h, http.MethodPost, "/v1/scan/classify", map[string]string{
		"image_b64": "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(img),
	})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "Optics", body["topic"])
	assert.Equal(t, true, body["cached"])
	assert.Equal(t, "old", body["id"])
}

func TestClassify_KeywordRowIsNotServedFromCache(t *testing.T) {
	img := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x02}
	scans := &fakeScans{cached: &store.ScanRow{
		ID: "guess", ImageHash: store.HashBytes(img), Topic: "Lenses", Variables: []string{}, Source: "keyword",
	}}
	d := services(t, gateway(upstream(t, `{"topic":"Optics","variables":["f"]}`), "AIzaTest"))
	d.Scans = scans
	h := New(d).Handler()

	rec := do(t, h, http.MethodPost, "/v1/scan/classify", map[string]string{
		"image_b64": base64.StdEncoding.EncodeToString(img),
	})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "Optics", body["topic"])
	assert.Equal(t, "vision", body["source"])
	assert.Nil(t, body["cached"])
	assert.Equal(t, 1, scans.lookups)
}

func TestClassify_TextBypassesImageCache(t *testing.T) {
	img := []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x03}
	scans := &fakeScans{cached: &store.ScanRow{
		ID: "old", ImageHash: store.HashBytes(img), Topic: "Optics", Variables: []string{}, Source: "vision",
	}}
	d := offline(t)
	d.Scans = scans
	h := New(d).Handler()

	rec := do(t, h, http.MethodPost, "/v1/scan/classify", map[string]string{
		"image_b64": base64.StdEncoding.EncodeToString(img),
		"text":      "cannon fires ball along parabola",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "Projectile Motion", body["topic"])
	assert.Nil(t, body["cached"])
	assert.Zero(t, scans.lookups)
}

func TestClassify_VisionStage(t *testing.T) {
	d := services(t, gateway(upstream(t, `{"topic":"Optics","variables":["f","u","v"]}`), "AIzaTest"))
	h := New(d).Handler()

	rec := do(t, h, http.MethodPost, "/v1/scan/classify", map[string]string{
		"image_b64": base64.StdEncoding.EncodeToString([]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}),
	})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "Optics", body["topic"])
	assert.Equal(t, "vision", body["source"])
}

func TestHistory_Errors(t *testing.T) {
	h := New(offline(t)).Handler()
	assert.Equal(t, http.StatusServiceUnavailable, do(t, h, http.MethodGet, "/v1/history?user_id=u", nil).Code)

	d := offline(t)
	d.Scans = &fakeScans{}
	h = New(d).Handler()
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/v1/history", nil).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(t, h, http.MethodPost, "/v1/history", "{}").Code)
}

func TestNotes_OfflineIsNotCached(t *testing.T) {
	d := offline(t)
	cache := &fakeNotesCache{}
	d.NotesCache = cache
	h := New(d).Handler()

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/v1/notes/generate", map[string]string{"topic": " "}).Code)

	rec := do(t, h, http.MethodPost, "/v1/notes/generate", map[string]any{"topic": "Optics", "variables": []string{"f"}})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, tutor.NotConfiguredMessage, body["explanation"])
	assert.Equal(t, true, body["fallback"])
	assert.Empty(t, cache.stored)
}

func TestNotes_GeneratedIsCachedAndServed(t *testing.T) {
	d := services(t, gateway(upstream(t, `{"explanation":"Lenses bend light.","formulas":["1/f = 1/v - 1/u"]}`), "AIzaTest"))
	cache := &fakeNotesCache{}
	d.NotesCache = cache
	h := New(d).Handler()

	rec := do(t, h, http.MethodPost, "/v1/notes/generate", map[string]any{"topic": "Lenses"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Lenses bend light.", decodeBody(t, rec)["explanation"])
	assert.Contains(t, cache.stored, "Lenses")

	cache.hit = &tutor.Notes{Topic: "Lenses", Explanation: "from cache"}
	rec = do(t, h, http.MethodPost, "/v1/notes/generate", map[string]any{"topic": "Lenses"})
	assert.Equal(t, "from cache", decodeBody(t, rec)["explanation"])
}

func TestNotes_Ask(t *testing.T) {
	d := services(t, gateway(upstream(t, `{"explanation":"Because f is negative for concave lenses."}`), "AIzaTest"))
	h := New(d).Handler()

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/v1/notes/ask", map[string]string{"topic": "Lenses"}).Code)

	rec := do(t, h, http.MethodPost, "/v1/notes/ask", map[string]any{
		"topic":    "Lenses",
		"notes":    map[string]any{"explanation": "old"},
		"question": "why negative?",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Because f is negative for concave lenses.", decodeBody(t, rec)["explanation"])
}

func TestQuiz(t *testing.T) {
	h := New(offline(t)).Handler()

	rec := do(t, h, http.MethodPost, "/v1/quiz/generate", map[string]any{"topic": "a"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid topic", decodeBody(t, rec)["error"])

	rec = do(t, h, http.MethodPost, "/v1/quiz/generate", map[string]any{"topic": "Chemistry", "num_questions": 3})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["fallback"])
	assert.Len(t, body["questions"], 3)
}

func TestVisualiserUpdate_UsesAndSavesState(t *testing.T) {
	d := services(t, gateway(upstream(t, `{"updated_parameters":{"velocity":40},"ai_response":"Done."}`), "AIzaTest"))
	states := &fakeStates{saved: map[string]map[string]float64{"u1/projectile": {"velocity": 20, "angle": 30}}}
	d.States = states
	h := New(d).Handler()

	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/v1/visualiser/update", map[string]any{"template_id": "projectile"}).Code)

	rec := do(t, h, http.MethodPost, "/v1/visualiser/update", map[string]any{
		"template_id": "projectile",
		"instruction": "faster please",
		"user_id":     "u1",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, map[string]any{"velocity": float64(40), "angle": float64(30)}, body["updated_parameters"])
	assert.Equal(t, "Done.", body["ai_response"])
	assert.Equal(t, map[string]float64{"velocity": 40, "angle": 30}, states.saved["u1/projectile"])
}

func TestVisualiserUpdate_DegradedNotSaved(t *testing.T) {
	d := offline(t)
	states := &fakeStates{}
	d.States = states
	h := New(d).Handler()

	rec := do(t, h, http.MethodPost, "/v1/visualiser/update", map[string]any{
		"template_id": "projectile",
		"parameters":  map[string]float64{"velocity": 10},
		"instruction": "faster please",
		"user_id":     "u1",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, tutor.AdjustDegradedMessage, body["ai_response"])
	assert.Equal(t, map[string]any{"velocity": float64(10)}, body["updated_parameters"])
	assert.Empty(t, states.saved)
}

func TestVisualiserChat(t *testing.T) {
	d := services(t, gateway(upstream(t, `{"action":"update","changes":{"angle":60}}`), "AIzaTest"))
	h := New(d).Handler()

	rec := do(t, h, http.MethodPost, "/v1/visualiser/chat", map[string]any{
		"topic":      "Projectile Motion",
		"parameters": map[string]float64{"angle": 45},
		"message":    "set angle to 60",
		"history":    []map[string]string{{"role": "user", "content": "hi"}},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "update", body["type"])
	assert.Equal(t, map[string]any{"angle": float64(60)}, body["changes"])
}

func TestGenerateImage(t *testing.T) {
	d := offline(t)
	h := New(d).Handler()
	assert.Equal(t, http.StatusServiceUnavailable, do(t, h, http.MethodPost, "/v1/visualiser/image", map[string]string{"prompt": "lens"}).Code)

	d.Images = fakeImages{err: imagegen.ErrNotConfigured}
	h = New(d).Handler()
	assert.Equal(t, http.StatusServiceUnavailable, do(t, h, http.MethodPost, "/v1/visualiser/image", map[string]string{"prompt": "lens"}).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, http.MethodPost, "/v1/visualiser/image", map[string]string{"prompt": ""}).Code)

	d.Images = fakeImages{err: errors.New("status 500")}
	h = New(d).Handler()
	assert.Equal(t, http.StatusBadGateway, do(t, h, http.MethodPost, "/v1/visualiser/image", map[string]string{"prompt": "lens"}).Code)

	d.Images = fakeImages{url: "https://cdn.test/x.png"}
	h = New(d).Handler()
	rec := do(t, h, http.MethodPost, "/v1/visualiser/image", map[string]string{"prompt": "lens"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "https://cdn.test/x.png", decodeBody(t, rec)["url"])
}

func TestRequestContext_Timeout(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/x?timeoutSec=5", strings.NewReader(""))
	ctx, cancel := requestContext(req, time.Minute)
	defer cancel()
	dl, ok := ctx.Deadline()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(5*time.Second), dl, time.Second)

	req.Header.Set("X-Request-Timeout", "30")
	ctx2, cancel2 := requestContext(req, time.Minute)
	defer cancel2()
	dl, _ = ctx2.Deadline()
	assert.WithinDuration(t, time.Now().Add(30*time.Second), dl, time.Second)
}
