// Package handle exposes the study features over HTTP.
package handle

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"stemly-gateway/api/internal/store"
	"stemly-gateway/api/internal/tutor"
)

const (
	defaultDeadline = 120 * time.Second
	maxBodyBytes    = 16 << 20
	notesCacheTTL   = 7 * 24 * time.Hour
	scanCacheTTL    = 24 * time.Hour

	userIDHeader = "X-User-Id"
)

type ScanStore interface {
	Insert(ctx context.Context, row store.ScanRow) (string, error)
	FindByHash(ctx context.Context, imageHash string, maxAge time.Duration) (*store.ScanRow, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]store.ScanRow, error)
}

type NotesCache interface {
	Find(ctx context.Context, topic string, vars []string, engine string, maxAge time.Duration, out any) error
	Upsert(ctx context.Context, topic string, vars []string, engine string, notes any) error
}

type StateStore interface {
	Get(ctx context.Context, userID, templateID string) (map[string]float64, error)
	Save(ctx context.Context, userID, templateID string, params map[string]float64) error
}

type ImageGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type Pinger interface {
	PingContext(ctx context.Context) error
}

// Deps are the collaborators of Handle. Stores and DB may be nil.
type Deps struct {
	Classifier *tutor.Classifier
	Notes      *tutor.NotesService
	Quiz       *tutor.QuizService
	Visualiser *tutor.Visualiser
	Chat       *tutor.Chat
	Images     ImageGenerator

	Scans      ScanStore
	NotesCache NotesCache
	States     StateStore
	DB         Pinger
}

type Handle struct {
	d Deps
}

func New(d Deps) *Handle {
	return &Handle{d: d}
}

// Routes registers every endpoint on mux.
func (h *Handle) Routes(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", h.Health)
	mux.Handle("/metrics", metricsHandler())
	mux.HandleFunc("/v1/scan/classify", h.Classify)
	mux.HandleFunc("/v1/notes/generate", h.GenerateNotes)
	mux.HandleFunc("/v1/notes/ask", h.AskNotes)
	mux.HandleFunc("/v1/quiz/generate", h.GenerateQuiz)
	mux.HandleFunc("/v1/visualiser/update", h.UpdateVisualiser)
	mux.HandleFunc("/v1/visualiser/chat", h.VisualiserChat)
	mux.HandleFunc("/v1/visualiser/image", h.GenerateImage)
	mux.HandleFunc("/v1/history", h.History)
}

// Handler returns the routed mux wrapped in the request middleware.
func (h *Handle) Handler() http.Handler {
	mux := http.NewServeMux()
	h.Routes(mux)
	return Middleware(mux)
}

func (h *Handle) Health(w http.ResponseWriter, r *http.Request) {
	if h.d.DB != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := h.d.DB.PingContext(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "degraded", "db": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// decodePOST enforces POST and decodes a bounded JSON body into v. It writes
// the error response itself and reports whether the handler may continue.
func decodePOST(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST only")
		return false
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, http.StatusRequestEntityTooLarge, "body too large")
			return false
		}
		writeError(w, http.StatusBadRequest, "bad json: "+err.Error())
		return false
	}
	return true
}

// requestContext applies X-Request-Timeout (seconds) or ?timeoutSec, else def.
func requestContext(r *http.Request, def time.Duration) (context.Context, context.CancelFunc) {
	deadline := def
	if ts := r.Header.Get("X-Request-Timeout"); ts != "" {
		if v, _ := strconv.Atoi(ts); v > 0 {
			deadline = time.Duration(v) * time.Second
		}
	} else if ts := r.URL.Query().Get("timeoutSec"); ts != "" {
		if v, _ := strconv.Atoi(ts); v > 0 {
			deadline = time.Duration(v) * time.Second
		}
	}
	return context.WithTimeout(r.Context(), deadline)
}

func atoiOr(s string, def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return def
	}
	return n
}
